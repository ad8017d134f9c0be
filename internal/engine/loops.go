package engine

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"cross-venue-mm/hedge"
	"cross-venue-mm/market"
	"cross-venue-mm/pnl"
	"cross-venue-mm/risk"
	"cross-venue-mm/strategy"
)

// ingestSink 行情摄入任务的回调：校验后写入快照、估计器并广播。
type ingestSink struct {
	e *Engine
}

func (s ingestSink) OnBook(b market.BookTop) {
	if err := b.Validate(); err != nil {
		s.e.logger.Debug("book dropped", zap.Error(err))
		return
	}
	s.e.received.Add(1)
	s.e.book.Store(b)
	s.e.publisher.PublishBook(b)
}

func (s ingestSink) OnTrade(t market.Trade) {
	if t.Px <= 0 || t.Sz <= 0 || !t.Side.Valid() {
		return
	}
	s.e.received.Add(1)
	s.e.est.OnTrade(t)
	s.e.publisher.PublishTrade(t)
}

// runIngestion 每次会话结束后按退避重连；收到过消息的会话重置退避。
func (e *Engine) runIngestion(ctx context.Context) {
	sink := ingestSink{e: e}
	attempt := 0
	for {
		before := e.received.Load()
		err := e.feed.Run(ctx, sink)
		if ctx.Err() != nil {
			return
		}
		if e.received.Load() > before {
			attempt = 0
		}
		delay := e.backoff.Next(attempt)
		attempt++
		e.monitor.RecordFeedReconnect()
		e.logger.Warn("feed session ended, reconnecting",
			zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (e *Engine) runQuoting(ctx context.Context) {
	ticker := time.NewTicker(e.refreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.quoteOnce(ctx)
		}
	}
}

// quoteOnce 一次报价：风控、计算、去抖、限速、提交。
func (e *Engine) quoteOnce(ctx context.Context) {
	book, ok := e.book.Load()
	if !ok {
		e.monitor.RecordQuoteSkipped("no_book")
		return
	}
	mid := book.Mid()
	now := e.clock.Now().UnixMilli()
	ageMs := now - book.TsMs
	est := e.est.Snapshot()
	inv := e.inv.Snapshot().At(mid)
	e.monitor.UpdateMarket(market.Microprice(book), est.SigmaBps, est.VWAP, ageMs)
	e.monitor.UpdateInventory(inv.Qty, inv.PvUSD)

	err := e.riskMgr.Evaluate(inv.Qty*mid, ageMs)
	if err == nil {
		err = e.breaker.Allow()
	}
	if err != nil {
		e.onRiskViolation(ctx, err, inv.Qty*mid, ageMs)
		return
	}
	e.mu.Lock()
	e.riskReason = ""
	e.mu.Unlock()

	skew := e.skew.ReservationSkew(est.SigmaBps, inv.Qty, mid)
	q := e.quotes.Compute(book, est.SigmaBps, skew, e.cfg.Quote.SizeUSD)
	if err := q.Validate(); err != nil {
		e.monitor.RecordQuoteSkipped("invalid")
		e.logger.Warn("quote rejected", zap.Error(err),
			zap.Float64("bid", q.Bid), zap.Float64("ask", q.Ask))
		return
	}

	e.mu.RLock()
	prev, quoting := e.lastQuote, e.quoting
	e.mu.RUnlock()
	if quoting && q.MovedBps(prev) < e.cfg.Quote.EpsilonMoveBps {
		e.monitor.RecordQuoteSkipped("no_move")
		return
	}
	if !e.orderCap.Allow() {
		e.monitor.RecordQuoteSkipped("rate_limited")
		return
	}

	size := e.cfg.Quote.SizeUSD / q.MidRef
	if err := e.quoter.Replace(ctx, q.Bid, q.Ask, size); err != nil {
		e.monitor.RecordQuoteError()
		e.logger.LogError(err, map[string]interface{}{"op": "replace_quotes", "bid": q.Bid, "ask": q.Ask})
		return
	}
	e.mu.Lock()
	e.lastQuote, e.quoting = q, true
	e.mu.Unlock()

	e.monitor.RecordQuote(q.Bid, q.Ask, q.HalfSpreadBps)
	e.logger.LogQuote("replaced", map[string]interface{}{
		"bid":       q.Bid,
		"ask":       q.Ask,
		"size":      size,
		"half_bps":  q.HalfSpreadBps,
		"sigma_bps": est.SigmaBps,
		"skew_px":   skew,
	})
	e.publishStatus(ctx)
}

// onRiskViolation 暂停报价；进入暂停时撤单一次。
func (e *Engine) onRiskViolation(ctx context.Context, err error, invUSD float64, ageMs int64) {
	reason := risk.Reason(err)
	e.monitor.RecordRiskReject(reason)

	e.mu.Lock()
	wasQuoting := e.quoting
	changed := e.riskReason != reason
	e.quoting, e.riskReason = false, reason
	e.lastQuote = strategy.Quote{}
	e.mu.Unlock()

	if wasQuoting {
		if cerr := e.quoter.CancelAll(ctx); cerr != nil {
			e.logger.LogError(cerr, map[string]interface{}{"op": "cancel_all", "reason": reason})
		}
	}
	if !changed {
		return
	}
	fields := map[string]interface{}{
		"reason":        reason,
		"inventory_usd": invUSD,
		"book_age_ms":   ageMs,
		"error":         err.Error(),
	}
	e.logger.LogRisk("quoting_paused", fields)
	e.alert(false, "quoting paused: "+reason, fields)
	e.publishStatus(ctx)
}

func (e *Engine) runFills(ctx context.Context) {
	for {
		fill, err := e.fills.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("fill source error", zap.Error(err))
			if !sleep(ctx, e.refreshInterval()) {
				return
			}
			continue
		}
		e.handleFill(ctx, fill)
	}
}

// handleFill 先记账再对冲；对冲失败时成交仍然保留在库存中。
func (e *Engine) handleFill(ctx context.Context, fill market.FillOnX) {
	if err := fill.Validate(); err != nil {
		e.logger.LogError(err, map[string]interface{}{"op": "validate_fill", "order_id": fill.OrderID})
		return
	}
	e.monitor.RecordFill()
	inv := e.inv.ApplyFill(fill)
	// 成交后做市所报价已失效，下一次报价不做去抖
	e.mu.Lock()
	e.lastQuote = strategy.Quote{}
	e.mu.Unlock()
	e.logger.LogFill("received", fill.OrderID, map[string]interface{}{
		"side":    fill.Side.String(),
		"px":      fill.Px,
		"sz":      fill.Sz,
		"inv_qty": inv.Qty,
	})

	refPx := fill.Px
	if book, ok := e.book.Load(); ok {
		refPx = book.Mid()
		if age := e.clock.Now().UnixMilli() - book.TsMs; !e.riskMgr.CheckVenueHealth(age) {
			e.logger.Warn("hedging against stale book", zap.Int64("book_age_ms", age))
		}
	}

	start := time.Now()
	reports, err := e.hedger.HedgeFill(ctx, fill.Side, fill.Sz, refPx)
	e.monitor.RecordHedgeLatency(time.Since(start).Seconds())

	hedgeSide := fill.Side.Opposite()
	for _, r := range reports {
		if r.Filled <= 0 {
			continue
		}
		inv = e.inv.ApplyHedge(hedgeSide, r.Filled, r.AvgPx)
		e.monitor.RecordHedgeReport(r.Liquidity.String())
	}
	if err != nil {
		e.monitor.RecordHedgeFailure()
		fields := map[string]interface{}{
			"op":       "hedge",
			"order_id": fill.OrderID,
			"qty":      fill.Sz,
			"hedged":   hedge.FilledQty(reports),
		}
		e.logger.LogError(err, fields)
		if ctx.Err() == nil {
			e.alert(true, "hedge failed", fields)
			if e.breaker.RecordFailure() {
				e.alert(true, "hedge breaker open, quoting paused", map[string]interface{}{"trips": e.breaker.Trips()})
			}
		}
	} else {
		e.breaker.RecordSuccess()
	}

	hedged := hedge.FilledQty(reports)
	p := pnl.ComputePnL(fill, reports)
	tot := e.ledger.Add(fill, p, hedged)
	e.monitor.UpdatePnL(tot.GrossUSD, tot.FeesUSD, tot.NetUSD, tot.UnhedgedQty)
	e.monitor.UpdateInventory(inv.Qty, inv.PvUSD)
	e.logger.LogHedge("completed", map[string]interface{}{
		"order_id":  fill.OrderID,
		"hedged":    hedged,
		"residual":  math.Max(fill.Sz-hedged, 0),
		"gross_usd": p.GrossUSD,
		"fees_usd":  p.FeesUSD,
		"net_usd":   p.NetUSD,
		"inv_qty":   inv.Qty,
	})
	e.publishStatus(ctx)
}
