package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cross-venue-mm/inventory"
	"cross-venue-mm/market"
	"cross-venue-mm/pnl"
	"cross-venue-mm/strategy"
)

// Snapshot 引擎最新状态，只保留当前值。
type Snapshot struct {
	Symbol     string                   `json:"symbol"`
	TsMs       int64                    `json:"tsMs"`
	Book       market.BookTop           `json:"book"`
	HasBook    bool                     `json:"hasBook"`
	Estimators market.EstimatorSnapshot `json:"estimators"`
	Inventory  inventory.State          `json:"inventory"`
	LastQuote  strategy.Quote           `json:"lastQuote"`
	Quoting    bool                     `json:"quoting"`
	RiskReason string                   `json:"riskReason,omitempty"`
	PnL        pnl.Totals               `json:"pnl"`
}

// Sink 状态发布目标。
type Sink interface {
	Publish(ctx context.Context, s Snapshot) error
}

// NopSink 丢弃所有状态。
type NopSink struct{}

func (NopSink) Publish(context.Context, Snapshot) error { return nil }

// RedisSink 把最新状态 JSON 写到 <prefix>:<symbol>:state。
type RedisSink struct {
	rdb     redis.UniversalClient
	prefix  string
	timeout time.Duration
}

func NewRedisSink(rdb redis.UniversalClient, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "mm"
	}
	return &RedisSink{rdb: rdb, prefix: prefix, timeout: 200 * time.Millisecond}
}

// Dial 创建客户端并 Ping 一次，失败时关闭客户端。
func Dial(ctx context.Context, addr string, db int, prefix string) (*RedisSink, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisSink(rdb, prefix), nil
}

// Key 状态键名。
func (s *RedisSink) Key(symbol string) string {
	return s.prefix + ":" + symbol + ":state"
}

func (s *RedisSink) Publish(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.rdb.Set(wctx, s.Key(snap.Symbol), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

// Client 底层连接，告警通道复用。
func (s *RedisSink) Client() redis.UniversalClient {
	return s.rdb
}
