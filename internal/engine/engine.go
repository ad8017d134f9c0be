package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"cross-venue-mm/config"
	"cross-venue-mm/execution"
	"cross-venue-mm/gateway"
	"cross-venue-mm/hedge"
	"cross-venue-mm/infrastructure/logger"
	"cross-venue-mm/internal/status"
	"cross-venue-mm/inventory"
	"cross-venue-mm/market"
	"cross-venue-mm/metrics"
	"cross-venue-mm/pnl"
	"cross-venue-mm/risk"
	"cross-venue-mm/strategy"
)

// EngineState 引擎状态
type EngineState int32

const (
	// StateIdle 空闲状态
	StateIdle EngineState = iota
	// StateRunning 运行状态
	StateRunning
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Feed 对冲所行情源：一次连接会话，断线返回错误。
type Feed interface {
	Run(ctx context.Context, sink market.Sink) error
}

// QuoteSubmitter 做市所报价通道。
type QuoteSubmitter interface {
	Replace(ctx context.Context, bid, ask, size float64) error
	CancelAll(ctx context.Context) error
}

// FillSource 做市所成交回报，Next 阻塞直到有成交。
type FillSource interface {
	Next(ctx context.Context) (market.FillOnX, error)
}

// Alerter 由 alert.Manager 实现。
type Alerter interface {
	SendWarning(message string, fields map[string]interface{}) error
	SendCritical(message string, fields map[string]interface{}) error
}

// Components 引擎依赖组件
type Components struct {
	Feed      Feed
	Quoter    QuoteSubmitter
	Fills     FillSource
	Executor  execution.Executor
	Status    status.Sink
	Monitor   *metrics.Monitor
	Logger    *logger.Logger
	Alerts    Alerter
	Publisher *market.Publisher
	Clock     risk.Clock
}

// Engine 跨所做市编排：行情摄入、定时报价、成交对冲三个任务。
type Engine struct {
	cfg config.AppConfig

	quotes   strategy.QuoteEngine
	skew     inventory.Skew
	riskMgr  risk.Manager
	breaker  *risk.HedgeBreaker
	hedger   *hedge.Hedger
	orderCap *gateway.TokenBucketLimiter
	backoff  gateway.Backoff

	book      market.BookHolder
	est       *market.Estimators
	inv       *inventory.Tracker
	ledger    *pnl.Ledger
	publisher *market.Publisher

	feed    Feed
	quoter  QuoteSubmitter
	fills   FillSource
	status  status.Sink
	monitor *metrics.Monitor
	logger  *logger.Logger
	alerts  Alerter
	clock   risk.Clock

	// 报价任务独占，Snapshot 读取
	mu         sync.RWMutex
	lastQuote  strategy.Quote
	quoting    bool
	riskReason string

	received atomic.Int64
	state    atomic.Int32
	cancel   context.CancelFunc
	cancelMu sync.Mutex
}

// New 创建引擎
func New(cfg config.AppConfig, c Components) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(c); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}
	if c.Status == nil {
		c.Status = status.NopSink{}
	}
	if c.Monitor == nil {
		c.Monitor = metrics.New(metrics.DefaultConfig())
	}
	if c.Publisher == nil {
		c.Publisher = market.NewPublisher()
	}
	if c.Clock == nil {
		c.Clock = risk.NowUTC
	}

	burst := int(cfg.Risk.MaxOrderRatePerS)
	return &Engine{
		cfg:       cfg,
		quotes:    strategy.NewQuoteEngine(cfg),
		skew:      inventory.NewSkew(cfg.Inventory.Gamma, cfg.Inventory.HorizonSecs),
		riskMgr:   risk.NewManager(cfg.Risk),
		breaker:   risk.NewHedgeBreaker(cfg.Risk, c.Clock),
		hedger:    hedge.New(hedge.ParamsFromConfig(cfg.Hedge), c.Executor, c.Logger.Logger),
		orderCap:  gateway.NewTokenBucketLimiter(cfg.Risk.MaxOrderRatePerS, burst),
		backoff:   gateway.DefaultBackoff(),
		est:       market.NewEstimators(cfg.Quote.VWAPWindowTrades, cfg.Quote.VolWindowSecs, cfg.Quote.VolStepMs),
		inv:       &inventory.Tracker{},
		ledger:    pnl.NewLedger(),
		publisher: c.Publisher,
		feed:      c.Feed,
		quoter:    c.Quoter,
		fills:     c.Fills,
		status:    c.Status,
		monitor:   c.Monitor,
		logger:    c.Logger.WithFields(map[string]interface{}{"symbol": cfg.Symbol}),
		alerts:    c.Alerts,
		clock:     c.Clock,
	}, nil
}

// Run 启动三个任务并阻塞到全部退出；退出后尽力撤掉做市所报价。
func (e *Engine) Run(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("engine already started (state: %s)", e.State())
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancelMu.Lock()
	e.cancel = cancel
	e.cancelMu.Unlock()
	defer cancel()

	e.logger.Info("engine starting",
		zap.Duration("refresh", e.refreshInterval()),
		zap.Float64("size_usd", e.cfg.Quote.SizeUSD),
		zap.Float64("taker_fraction", e.cfg.Hedge.TakerFraction))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); e.runIngestion(ctx) }()
	go func() { defer wg.Done(); e.runQuoting(ctx) }()
	go func() { defer wg.Done(); e.runFills(ctx) }()
	wg.Wait()

	cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ccancel()
	if err := e.quoter.CancelAll(cctx); err != nil {
		e.logger.Error("cancel all on shutdown failed", zap.Error(err))
	}
	e.state.Store(int32(StateStopped))
	e.logger.Info("engine stopped")
	return nil
}

// Stop 通知所有任务退出，幂等。
func (e *Engine) Stop() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) State() EngineState {
	return EngineState(e.state.Load())
}

// Snapshot 当前状态副本。
func (e *Engine) Snapshot() status.Snapshot {
	book, hasBook := e.book.Load()
	e.mu.RLock()
	q, quoting, reason := e.lastQuote, e.quoting, e.riskReason
	e.mu.RUnlock()
	return status.Snapshot{
		Symbol:     e.cfg.Symbol,
		TsMs:       e.clock.Now().UnixMilli(),
		Book:       book,
		HasBook:    hasBook,
		Estimators: e.est.Snapshot(),
		Inventory:  e.inv.Snapshot(),
		LastQuote:  q,
		Quoting:    quoting,
		RiskReason: reason,
		PnL:        e.ledger.Totals(),
	}
}

func (e *Engine) refreshInterval() time.Duration {
	return time.Duration(e.cfg.Quote.BaseRefreshMs) * time.Millisecond
}

// sleep 等待 d 或 ctx 结束；ctx 结束返回 false。
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (e *Engine) publishStatus(ctx context.Context) {
	if err := e.status.Publish(ctx, e.Snapshot()); err != nil && ctx.Err() == nil {
		e.logger.Debug("status publish failed", zap.Error(err))
	}
}

func (e *Engine) alert(critical bool, msg string, fields map[string]interface{}) {
	if e.alerts == nil {
		return
	}
	var err error
	if critical {
		err = e.alerts.SendCritical(msg, fields)
	} else {
		err = e.alerts.SendWarning(msg, fields)
	}
	if err != nil {
		e.logger.Debug("alert delivery failed", zap.Error(err))
	}
}

// validateComponents 验证组件
func validateComponents(c Components) error {
	if c.Feed == nil {
		return errors.New("feed is required")
	}
	if c.Quoter == nil {
		return errors.New("quoter is required")
	}
	if c.Fills == nil {
		return errors.New("fill source is required")
	}
	if c.Executor == nil {
		return errors.New("executor is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}
