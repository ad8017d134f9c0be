package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cross-venue-mm/market"
)

// PaperVenueX 做市所的纸面撮合：记录当前双边报价，
// 用对冲所的公开成交判断报价是否会被吃到，并生成 FillOnX。
// 同时实现报价提交（Replace/CancelAll）与成交源（Next）。
type PaperVenueX struct {
	mu      sync.Mutex
	bid     float64
	ask     float64
	size    float64
	resting bool
	seq     int64

	fills  chan market.FillOnX
	logger *zap.Logger
}

func NewPaperVenueX(logger *zap.Logger) *PaperVenueX {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperVenueX{
		fills:  make(chan market.FillOnX, 64),
		logger: logger,
	}
}

// Replace 撤掉旧报价并挂上新的双边报价。
func (p *PaperVenueX) Replace(_ context.Context, bid, ask, size float64) error {
	if bid <= 0 || ask <= bid || size <= 0 {
		return fmt.Errorf("paper venue: invalid quote bid=%v ask=%v size=%v", bid, ask, size)
	}
	p.mu.Lock()
	p.bid, p.ask, p.size, p.resting = bid, ask, size, true
	p.mu.Unlock()
	p.logger.Debug("paper quote replaced", zap.Float64("bid", bid), zap.Float64("ask", ask), zap.Float64("size", size))
	return nil
}

// CancelAll 撤掉全部报价。
func (p *PaperVenueX) CancelAll(context.Context) error {
	p.mu.Lock()
	p.resting = false
	p.mu.Unlock()
	return nil
}

// Quotes 返回当前挂单；ok=false 表示没有挂单。
func (p *PaperVenueX) Quotes() (bid, ask, size float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bid, p.ask, p.size, p.resting
}

// OnTrade 用一笔市场成交撮合当前报价：卖方主动成交价不高于我方 bid 则我方买入，
// 买方主动成交价不低于我方 ask 则我方卖出。成交后整组报价失效，等待下一次 Replace。
func (p *PaperVenueX) OnTrade(t market.Trade) {
	p.mu.Lock()
	if !p.resting || t.Sz <= 0 {
		p.mu.Unlock()
		return
	}
	var fill market.FillOnX
	switch {
	case t.Side == market.Sell && t.Px <= p.bid:
		fill = market.FillOnX{Px: p.bid, Side: market.Buy}
	case t.Side == market.Buy && t.Px >= p.ask:
		fill = market.FillOnX{Px: p.ask, Side: market.Sell}
	default:
		p.mu.Unlock()
		return
	}
	fill.Sz = min(t.Sz, p.size)
	fill.TsMs = t.TsMs
	p.seq++
	fill.OrderID = fmt.Sprintf("paper-%d", p.seq)
	p.resting = false
	p.mu.Unlock()

	select {
	case p.fills <- fill:
	default:
		p.logger.Warn("paper fill dropped", zap.String("order_id", fill.OrderID))
	}
}

// Watch 消费成交流直到 ctx 结束或通道关闭。
func (p *PaperVenueX) Watch(ctx context.Context, trades <-chan market.Trade) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-trades:
			if !ok {
				return
			}
			p.OnTrade(t)
		}
	}
}

// Next 阻塞等待下一笔成交。
func (p *PaperVenueX) Next(ctx context.Context) (market.FillOnX, error) {
	select {
	case <-ctx.Done():
		return market.FillOnX{}, ctx.Err()
	case f := <-p.fills:
		if f.TsMs == 0 {
			f.TsMs = time.Now().UnixMilli()
		}
		return f, nil
	}
}
