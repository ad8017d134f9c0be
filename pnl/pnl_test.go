package pnl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"cross-venue-mm/execution"
	"cross-venue-mm/market"
)

func TestComputePnLSellOnX(t *testing.T) {
	fill := market.FillOnX{Px: 100.1, Sz: 10, Side: market.Sell}
	reports := []execution.ExecReport{
		{AvgPx: 100.05, Filled: 5, FeeBps: 4, Liquidity: execution.Taker},
		{AvgPx: 99.99, Filled: 5, FeeBps: 0, Liquidity: execution.Maker},
	}
	got := ComputePnL(fill, reports)
	// gross: 0.05*5 + 0.11*5 = 0.8；fees: 4bps * 100.05 * 5 = 0.2001
	assert.InDelta(t, 0.8, got.GrossUSD, 1e-9)
	assert.InDelta(t, 0.2001, got.FeesUSD, 1e-9)
	assert.InDelta(t, 0.5999, got.NetUSD, 1e-9)
}

func TestComputePnLSingleTakerReport(t *testing.T) {
	fill := market.FillOnX{Px: 100.10, Sz: 100, Side: market.Sell}
	reports := []execution.ExecReport{{AvgPx: 100.05, Filled: 100, FeeBps: 4, Liquidity: execution.Taker}}
	got := ComputePnL(fill, reports)
	assert.InDelta(t, 5.0, got.GrossUSD, 1e-9)
	assert.InDelta(t, 4.002, got.FeesUSD, 1e-9)
	assert.InDelta(t, 0.998, got.NetUSD, 1e-9)
}

func TestComputePnLBuyOnXNegates(t *testing.T) {
	fill := market.FillOnX{Px: 99.9, Sz: 2, Side: market.Buy}
	reports := []execution.ExecReport{{AvgPx: 100, Filled: 2, FeeBps: 0, Liquidity: execution.Taker}}
	got := ComputePnL(fill, reports)
	// 买入 99.9，对冲卖出 100：每单位赚 0.1
	assert.InDelta(t, 0.2, got.GrossUSD, 1e-9)
}

func TestComputePnLEmptyReports(t *testing.T) {
	got := ComputePnL(market.FillOnX{Px: 100, Sz: 1, Side: market.Sell}, nil)
	assert.Equal(t, TradePnL{}, got)
}

func TestLedgerAccumulates(t *testing.T) {
	l := NewLedger()
	fill := market.FillOnX{Px: 100, Sz: 10, Side: market.Sell}
	l.Add(fill, TradePnL{GrossUSD: 1, FeesUSD: 0.2, NetUSD: 0.8}, 10)
	tot := l.Add(fill, TradePnL{GrossUSD: -0.5, FeesUSD: 0.1, NetUSD: -0.6}, 6)

	assert.Equal(t, 2, tot.Fills)
	assert.InDelta(t, 0.5, tot.GrossUSD, 1e-12)
	assert.InDelta(t, 0.2, tot.NetUSD, 1e-12)
	assert.InDelta(t, 16.0, tot.HedgedQty, 1e-12)
	assert.InDelta(t, 4.0, tot.UnhedgedQty, 1e-12)
	assert.Equal(t, tot, l.Totals())
}

func TestLedgerConcurrent(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Add(market.FillOnX{Sz: 1}, TradePnL{NetUSD: 1}, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, l.Totals().Fills)
	assert.InDelta(t, 800.0, l.Totals().NetUSD, 1e-9)
}
