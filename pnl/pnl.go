package pnl

import (
	"sync"

	"cross-venue-mm/execution"
	"cross-venue-mm/market"
)

// TradePnL 一笔做市成交及其对冲的盈亏（美元）。
type TradePnL struct {
	GrossUSD float64 `json:"grossUsd"`
	FeesUSD  float64 `json:"feesUsd"`
	NetUSD   float64 `json:"netUsd"`
}

// ComputePnL 做市所卖出时每单位收益为 pxX - avg，买入时取反；
// 手续费按对冲腿成交额计。只统计已成交的对冲数量。
func ComputePnL(fill market.FillOnX, reports []execution.ExecReport) TradePnL {
	var out TradePnL
	for _, r := range reports {
		var gross float64
		if fill.Sz > 0 {
			gross = (fill.Px - r.AvgPx) * (r.Filled / fill.Sz) * fill.Sz
		}
		if fill.Side == market.Buy {
			gross = -gross
		}
		out.GrossUSD += gross
		out.FeesUSD += r.FeeBps / 1e4 * r.AvgPx * r.Filled
	}
	out.NetUSD = out.GrossUSD - out.FeesUSD
	return out
}

// Totals 累计盈亏与成交统计。
type Totals struct {
	GrossUSD    float64 `json:"grossUsd"`
	FeesUSD     float64 `json:"feesUsd"`
	NetUSD      float64 `json:"netUsd"`
	Fills       int     `json:"fills"`
	HedgedQty   float64 `json:"hedgedQty"`
	UnhedgedQty float64 `json:"unhedgedQty"`
}

// Ledger 线程安全的累计账本。
type Ledger struct {
	mu sync.Mutex
	t  Totals
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Add 记入一笔成交的盈亏；hedgedQty 为对冲实际成交量，差额计入未对冲。
func (l *Ledger) Add(fill market.FillOnX, p TradePnL, hedgedQty float64) Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.t.GrossUSD += p.GrossUSD
	l.t.FeesUSD += p.FeesUSD
	l.t.NetUSD += p.NetUSD
	l.t.Fills++
	l.t.HedgedQty += hedgedQty
	if residual := fill.Sz - hedgedQty; residual > 0 {
		l.t.UnhedgedQty += residual
	}
	return l.t
}

func (l *Ledger) Totals() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.t
}
