package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross-venue-mm/config"
	"cross-venue-mm/execution"
	"cross-venue-mm/hedge"
	"cross-venue-mm/infrastructure/alert"
	"cross-venue-mm/infrastructure/logger"
	"cross-venue-mm/internal/status"
	"cross-venue-mm/market"
	"cross-venue-mm/risk"
)

type quoteCall struct {
	bid, ask, size float64
}

type fakeQuoter struct {
	mu       sync.Mutex
	replaces []quoteCall
	cancels  int
	err      error
}

func (q *fakeQuoter) Replace(_ context.Context, bid, ask, size float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.replaces = append(q.replaces, quoteCall{bid, ask, size})
	return nil
}

func (q *fakeQuoter) CancelAll(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancels++
	return nil
}

func (q *fakeQuoter) counts() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.replaces), q.cancels
}

type chanFills chan market.FillOnX

func (c chanFills) Next(ctx context.Context) (market.FillOnX, error) {
	select {
	case <-ctx.Done():
		return market.FillOnX{}, ctx.Err()
	case f := <-c:
		return f, nil
	}
}

// scriptedFeed 第一次会话推送盘口后断开，之后阻塞到 ctx 结束。
type scriptedFeed struct {
	sessions atomic.Int32
	book     func() market.BookTop
}

func (f *scriptedFeed) Run(ctx context.Context, sink market.Sink) error {
	if f.sessions.Add(1) == 1 {
		sink.OnBook(f.book())
		sink.OnTrade(market.Trade{Px: 100.05, Sz: 1, Side: market.Buy, TsMs: f.book().TsMs})
		return errors.New("connection reset")
	}
	sink.OnBook(f.book())
	<-ctx.Done()
	return ctx.Err()
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []status.Snapshot
}

func (s *recordingSink) Publish(_ context.Context, snap status.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *recordingSink) last() status.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snaps[len(s.snaps)-1]
}

// makerFails IOC 正常成交，maker 腿下单失败。
type makerFails struct {
	*execution.Simulated
}

func (makerFails) PostMaker(context.Context, market.Side, float64, float64) (execution.ExecReport, error) {
	return execution.ExecReport{}, errors.New("venue rejected")
}

type fixture struct {
	eng    *Engine
	quoter *fakeQuoter
	clock  *risk.ManualClock
	sink   *recordingSink
	alerts *alert.MockChannel
}

var t0 = time.UnixMilli(1700000000000)

func newFixture(t *testing.T, exec execution.Executor) *fixture {
	t.Helper()
	cfg := config.Default()
	if exec == nil {
		exec = execution.NewSimulated(cfg.FeesY.TakerBps, cfg.FeesY.MakerBps)
	}
	f := &fixture{
		quoter: &fakeQuoter{},
		clock:  risk.NewManualClock(t0),
		sink:   &recordingSink{},
		alerts: alert.NewMockChannel("mock"),
	}
	eng, err := New(cfg, Components{
		Feed:     &scriptedFeed{book: func() market.BookTop { return testBook(t0) }},
		Quoter:   f.quoter,
		Fills:    make(chanFills),
		Executor: exec,
		Status:   f.sink,
		Logger:   logger.NewNop(),
		Alerts:   alert.NewManager(cfg.Symbol, []alert.Channel{f.alerts}, time.Minute),
		Clock:    f.clock,
	})
	require.NoError(t, err)
	f.eng = eng
	return f
}

func testBook(ts time.Time) market.BookTop {
	return market.BookTop{BidPx: 100, BidSz: 10, AskPx: 100.1, AskSz: 10, TsMs: ts.UnixMilli()}
}

func TestNewRejectsMissingComponents(t *testing.T) {
	_, err := New(config.Default(), Components{Logger: logger.NewNop()})
	assert.Error(t, err)

	bad := config.Default()
	bad.Hedge.TakerFraction = 2
	_, err = New(bad, Components{
		Feed: &scriptedFeed{}, Quoter: &fakeQuoter{}, Fills: make(chanFills),
		Executor: execution.NewSimulated(4, 0), Logger: logger.NewNop(),
	})
	assert.Error(t, err)
}

func TestQuoteOnce(t *testing.T) {
	t.Run("无盘口不报价", func(t *testing.T) {
		f := newFixture(t, nil)
		f.eng.quoteOnce(context.Background())
		n, _ := f.quoter.counts()
		assert.Zero(t, n)
	})

	t.Run("提交双边报价并按美元换算数量", func(t *testing.T) {
		f := newFixture(t, nil)
		f.eng.book.Store(testBook(t0))
		f.eng.quoteOnce(context.Background())

		require.Len(t, f.quoter.replaces, 1)
		c := f.quoter.replaces[0]
		assert.Less(t, c.bid, 100.05)
		assert.Greater(t, c.ask, 100.05)
		assert.InDelta(t, 25000/100.05, c.size, 1e-9)

		snap := f.sink.last()
		assert.True(t, snap.Quoting)
		assert.Equal(t, c.bid, snap.LastQuote.Bid)
	})

	t.Run("价格未移动不重复提交", func(t *testing.T) {
		f := newFixture(t, nil)
		f.eng.book.Store(testBook(t0))
		f.eng.quoteOnce(context.Background())
		f.eng.quoteOnce(context.Background())
		n, _ := f.quoter.counts()
		assert.Equal(t, 1, n)
	})

	t.Run("提交失败不记为已报价", func(t *testing.T) {
		f := newFixture(t, nil)
		f.quoter.err = errors.New("rejected")
		f.eng.book.Store(testBook(t0))
		f.eng.quoteOnce(context.Background())
		assert.False(t, f.eng.Snapshot().Quoting)
	})
}

func TestRiskViolationCancelsOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.book.Store(testBook(t0))
	f.eng.quoteOnce(context.Background())
	require.True(t, f.eng.Snapshot().Quoting)

	// 盘口超过 maxVenueDownMs 未更新
	f.clock.Advance(3001 * time.Millisecond)
	f.eng.quoteOnce(context.Background())
	f.eng.quoteOnce(context.Background())

	n, cancels := f.quoter.counts()
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, cancels)
	snap := f.eng.Snapshot()
	assert.False(t, snap.Quoting)
	assert.Equal(t, "venue_down", snap.RiskReason)
	require.Equal(t, 1, f.alerts.Count())
	assert.Equal(t, alert.LevelWarning, f.alerts.Alerts()[0].Level)

	// 盘口恢复后继续报价
	f.eng.book.Store(testBook(f.clock.Now()))
	f.eng.quoteOnce(context.Background())
	n, _ = f.quoter.counts()
	assert.Equal(t, 2, n)
	assert.Empty(t, f.eng.Snapshot().RiskReason)
}

func TestInventoryLimitSuppressesQuotes(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.book.Store(testBook(t0))
	f.eng.inv.Apply(-150, 100.05) // 约 -15000 USD，超过 10000 上限

	f.eng.quoteOnce(context.Background())
	n, cancels := f.quoter.counts()
	assert.Zero(t, n)
	assert.Zero(t, cancels, "未在报价时无需撤单")
	assert.Equal(t, "inventory", f.eng.Snapshot().RiskReason)
}

func TestHandleFillHedgesToFlat(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.book.Store(testBook(t0))

	fill := market.FillOnX{Px: 100.10, Sz: 100, Side: market.Sell, TsMs: t0.UnixMilli(), OrderID: "x-1"}
	f.eng.handleFill(context.Background(), fill)

	snap := f.eng.Snapshot()
	assert.InDelta(t, 0, snap.Inventory.Qty, 1e-9)

	// 卖出成交在对冲所买回：taker 一半按保护价，maker 一半按挂单价
	takerPx := execution.GuardedPrice(market.Buy, 100.05, 3)
	makerPx := hedge.MakerPrice(market.Buy, 100.05, 1)
	wantGross := (100.10-takerPx)*50 + (100.10-makerPx)*50
	wantFees := 4.0 / 1e4 * takerPx * 50

	assert.Equal(t, 1, snap.PnL.Fills)
	assert.InDelta(t, 100, snap.PnL.HedgedQty, 1e-9)
	assert.InDelta(t, 0, snap.PnL.UnhedgedQty, 1e-9)
	assert.InDelta(t, wantGross, snap.PnL.GrossUSD, 1e-9)
	assert.InDelta(t, wantFees, snap.PnL.FeesUSD, 1e-9)
	assert.InDelta(t, wantGross-wantFees, snap.PnL.NetUSD, 1e-9)
	assert.Zero(t, f.alerts.Count())
	assert.Equal(t, snap.PnL, f.sink.last().PnL)
}

func TestFillForcesRequoteOnUnchangedBook(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.book.Store(testBook(t0))
	f.eng.quoteOnce(context.Background())

	f.eng.handleFill(context.Background(), market.FillOnX{Px: 100.10, Sz: 10, Side: market.Sell, OrderID: "x-5"})
	require.InDelta(t, 0, f.eng.Snapshot().Inventory.Qty, 1e-9)

	// 盘口未变，但成交后报价已失效，需要重新挂出
	f.eng.quoteOnce(context.Background())
	n, _ := f.quoter.counts()
	require.Equal(t, 2, n)
	assert.Equal(t, f.quoter.replaces[0], f.quoter.replaces[1])
	assert.True(t, f.eng.Snapshot().Quoting)

	f.eng.quoteOnce(context.Background())
	n, _ = f.quoter.counts()
	assert.Equal(t, 2, n, "之后恢复去抖")
}

func TestHandleFillWithoutBookUsesFillPrice(t *testing.T) {
	f := newFixture(t, nil)
	fill := market.FillOnX{Px: 100, Sz: 10, Side: market.Buy, OrderID: "x-2"}
	f.eng.handleFill(context.Background(), fill)

	snap := f.eng.Snapshot()
	assert.InDelta(t, 0, snap.Inventory.Qty, 1e-9)
	// 买入成交在 100 的保护价以下卖出，毛利为负
	takerPx := execution.GuardedPrice(market.Sell, 100, 3)
	makerPx := hedge.MakerPrice(market.Sell, 100, 1)
	assert.InDelta(t, (takerPx-100)*5+(makerPx-100)*5, snap.PnL.GrossUSD, 1e-9)
}

func TestHandleFillHedgeFailureKeepsFill(t *testing.T) {
	f := newFixture(t, makerFails{execution.NewSimulated(4, 0)})
	f.eng.book.Store(testBook(t0))

	fill := market.FillOnX{Px: 100.10, Sz: 100, Side: market.Sell, OrderID: "x-3"}
	f.eng.handleFill(context.Background(), fill)

	snap := f.eng.Snapshot()
	assert.InDelta(t, -50, snap.Inventory.Qty, 1e-9, "maker 腿失败，剩余仓位保留")
	assert.InDelta(t, 50, snap.PnL.HedgedQty, 1e-9)
	assert.InDelta(t, 50, snap.PnL.UnhedgedQty, 1e-9)
	require.Equal(t, 1, f.alerts.Count())
	assert.Equal(t, alert.LevelCritical, f.alerts.Alerts()[0].Level)
}

func TestHandleFillRejectsInvalid(t *testing.T) {
	f := newFixture(t, nil)
	f.eng.handleFill(context.Background(), market.FillOnX{Px: 100, Sz: 0, Side: market.Sell})
	snap := f.eng.Snapshot()
	assert.Zero(t, snap.PnL.Fills)
	assert.Zero(t, snap.Inventory.Qty)
}

func TestIngestSinkDropsInvalid(t *testing.T) {
	f := newFixture(t, nil)
	sink := ingestSink{e: f.eng}
	sink.OnBook(market.BookTop{BidPx: 101, AskPx: 100})
	_, ok := f.eng.book.Load()
	assert.False(t, ok)

	sink.OnTrade(market.Trade{Px: -1, Sz: 1, Side: market.Buy})
	assert.Zero(t, f.eng.est.Snapshot().Trades)

	sink.OnBook(testBook(t0))
	sink.OnTrade(market.Trade{Px: 100, Sz: 1, Side: market.Sell, TsMs: t0.UnixMilli()})
	_, ok = f.eng.book.Load()
	assert.True(t, ok)
	assert.Equal(t, 1, f.eng.est.Snapshot().Trades)
}

func TestRunLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Quote.BaseRefreshMs = 10
	quoter := &fakeQuoter{}
	feed := &scriptedFeed{book: func() market.BookTop { return testBook(time.Now()) }}
	fills := make(chanFills, 1)

	eng, err := New(cfg, Components{
		Feed:     feed,
		Quoter:   quoter,
		Fills:    fills,
		Executor: execution.NewSimulated(4, 0),
		Logger:   logger.NewNop(),
	})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, eng.State())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	assert.Eventually(t, func() bool { return feed.sessions.Load() >= 2 }, 2*time.Second, 10*time.Millisecond, "断线后重连")
	assert.Eventually(t, func() bool {
		n, _ := quoter.counts()
		return n >= 1
	}, 2*time.Second, 10*time.Millisecond)

	fills <- market.FillOnX{Px: 100.10, Sz: 2, Side: market.Sell, OrderID: "x-4"}
	assert.Eventually(t, func() bool { return eng.Snapshot().PnL.Fills == 1 }, 2*time.Second, 10*time.Millisecond)

	eng.Stop()
	require.NoError(t, <-done)
	_, cancels := quoter.counts()
	assert.GreaterOrEqual(t, cancels, 1, "退出时撤单")
	assert.Equal(t, StateStopped, eng.State())
	assert.Error(t, eng.Run(context.Background()), "不能重复启动")
}

func TestHedgeBreakerPausesQuoting(t *testing.T) {
	f := newFixture(t, makerFails{execution.NewSimulated(4, 0)})
	f.eng.book.Store(testBook(t0))

	for i := 0; i < 3; i++ {
		f.eng.handleFill(context.Background(), market.FillOnX{Px: 100.10, Sz: 1, Side: market.Sell})
	}
	assert.Equal(t, risk.BreakerOpen, f.eng.breaker.State())

	f.eng.quoteOnce(context.Background())
	n, _ := f.quoter.counts()
	assert.Zero(t, n)
	assert.Equal(t, "hedge_breaker", f.eng.Snapshot().RiskReason)

	var messages []string
	for _, a := range f.alerts.Alerts() {
		messages = append(messages, a.Message)
	}
	assert.Contains(t, messages, "hedge breaker open, quoting paused")

	// 冷却结束后半开，恢复报价
	f.clock.Advance(30 * time.Second)
	f.eng.book.Store(testBook(f.clock.Now()))
	f.eng.quoteOnce(context.Background())
	n, _ = f.quoter.counts()
	assert.Equal(t, 1, n)
}
