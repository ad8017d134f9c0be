package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器（私有 registry）
type Monitor struct {
	registry *prometheus.Registry

	// 市场指标
	microprice prometheus.Gauge
	sigmaBps   prometheus.Gauge
	vwap       prometheus.Gauge
	bookAge    prometheus.Gauge

	// 报价指标
	halfSpreadBps   prometheus.Gauge
	bidPrice        prometheus.Gauge
	askPrice        prometheus.Gauge
	quotesSubmitted prometheus.Counter
	quotesSkipped   *prometheus.CounterVec
	quoteErrors     prometheus.Counter

	// 库存指标
	inventoryQty prometheus.Gauge
	inventoryUSD prometheus.Gauge

	// 风控指标
	riskRejects *prometheus.CounterVec

	// 成交与对冲指标
	fills         prometheus.Counter
	hedgeReports  *prometheus.CounterVec
	hedgeFailures prometheus.Counter
	hedgeLatency  prometheus.Histogram
	unhedgedQty   prometheus.Gauge
	pnlGross      prometheus.Gauge
	pnlFees       prometheus.Gauge
	pnlNet        prometheus.Gauge

	// 系统指标
	feedReconnects prometheus.Counter
	restRequests   *prometheus.CounterVec
	restErrors     *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mm",
		Subsystem: "xvenue",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		}, labels)
	}

	return &Monitor{
		registry: reg,

		microprice: gauge("microprice", "对冲所微观价格"),
		sigmaBps:   gauge("sigma_bps", "滚动波动率（bps）"),
		vwap:       gauge("vwap", "滚动 VWAP"),
		bookAge:    gauge("book_age_ms", "最近一次盘口距今（毫秒）"),

		halfSpreadBps:   gauge("half_spread_bps", "当前报价半价差（bps）"),
		bidPrice:        gauge("quote_bid", "当前买价报价"),
		askPrice:        gauge("quote_ask", "当前卖价报价"),
		quotesSubmitted: counter("quotes_submitted_total", "提交到做市所的报价次数"),
		quotesSkipped:   counterVec("quotes_skipped_total", "跳过的报价周期", "reason"),
		quoteErrors:     counter("quote_errors_total", "报价提交失败次数"),

		inventoryQty: gauge("inventory_qty", "当前净仓位（基础资产）"),
		inventoryUSD: gauge("inventory_usd", "当前净仓位美元市值"),

		riskRejects: counterVec("risk_rejects_total", "风控拒绝次数", "reason"),

		fills:         counter("fills_total", "做市所成交笔数"),
		hedgeReports:  counterVec("hedge_reports_total", "对冲成交回报", "liquidity"),
		hedgeFailures: counter("hedge_failures_total", "对冲失败次数"),
		hedgeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hedge_latency_seconds",
			Help:      "成交到对冲完成的延迟（秒）",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		unhedgedQty: gauge("unhedged_qty", "累计未对冲数量"),
		pnlGross:    gauge("pnl_gross_usd", "累计毛利（美元）"),
		pnlFees:     gauge("pnl_fees_usd", "累计手续费（美元）"),
		pnlNet:      gauge("pnl_net_usd", "累计净利（美元）"),

		feedReconnects: counter("feed_reconnects_total", "行情源重连次数"),
		restRequests:   counterVec("rest_requests_total", "REST请求总数", "action"),
		restErrors:     counterVec("rest_errors_total", "REST错误总数", "action"),
	}
}

// 市场相关方法
func (m *Monitor) UpdateMarket(microprice, sigmaBps, vwap float64, bookAgeMs int64) {
	m.microprice.Set(microprice)
	m.sigmaBps.Set(sigmaBps)
	m.vwap.Set(vwap)
	m.bookAge.Set(float64(bookAgeMs))
}

// 报价相关方法
func (m *Monitor) RecordQuote(bid, ask, halfSpreadBps float64) {
	m.bidPrice.Set(bid)
	m.askPrice.Set(ask)
	m.halfSpreadBps.Set(halfSpreadBps)
	m.quotesSubmitted.Inc()
}

func (m *Monitor) RecordQuoteSkipped(reason string) {
	m.quotesSkipped.WithLabelValues(reason).Inc()
}

func (m *Monitor) RecordQuoteError() {
	m.quoteErrors.Inc()
}

// 库存相关方法
func (m *Monitor) UpdateInventory(qty, usd float64) {
	m.inventoryQty.Set(qty)
	m.inventoryUSD.Set(usd)
}

// 风控相关方法
func (m *Monitor) RecordRiskReject(reason string) {
	m.riskRejects.WithLabelValues(reason).Inc()
}

// 成交与对冲相关方法
func (m *Monitor) RecordFill() {
	m.fills.Inc()
}

func (m *Monitor) RecordHedgeReport(liquidity string) {
	m.hedgeReports.WithLabelValues(liquidity).Inc()
}

func (m *Monitor) RecordHedgeFailure() {
	m.hedgeFailures.Inc()
}

func (m *Monitor) RecordHedgeLatency(seconds float64) {
	m.hedgeLatency.Observe(seconds)
}

func (m *Monitor) UpdatePnL(gross, fees, net, unhedged float64) {
	m.pnlGross.Set(gross)
	m.pnlFees.Set(fees)
	m.pnlNet.Set(net)
	m.unhedgedQty.Set(unhedged)
}

// 系统相关方法
func (m *Monitor) RecordFeedReconnect() {
	m.feedReconnects.Inc()
}

func (m *Monitor) RecordRESTRequest(action string) {
	m.restRequests.WithLabelValues(action).Inc()
}

func (m *Monitor) RecordRESTError(action string) {
	m.restErrors.WithLabelValues(action).Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
