package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ZapChannel 把告警写入结构化日志
type ZapChannel struct {
	logger *zap.Logger
}

func NewZapChannel(logger *zap.Logger) *ZapChannel {
	return &ZapChannel{logger: logger.Named("alert")}
}

func (c *ZapChannel) Send(alert Alert) error {
	fields := make([]zap.Field, 0, len(alert.Fields)+2)
	fields = append(fields, zap.String("symbol", alert.Symbol), zap.Time("alert_ts", alert.Timestamp))
	for k, v := range alert.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	switch alert.Level {
	case LevelCritical:
		c.logger.Error(alert.Message, fields...)
	case LevelWarning:
		c.logger.Warn(alert.Message, fields...)
	default:
		c.logger.Info(alert.Message, fields...)
	}
	return nil
}

func (c *ZapChannel) Name() string {
	return "zap"
}

// RedisChannel 以 JSON 发布到 Redis 频道，供外部看板订阅
type RedisChannel struct {
	rdb     redis.UniversalClient
	channel string
	timeout time.Duration
}

// NewRedisChannel 频道名为 <prefix>:<symbol>:alerts
func NewRedisChannel(rdb redis.UniversalClient, prefix, symbol string) *RedisChannel {
	if prefix == "" {
		prefix = "mm"
	}
	return &RedisChannel{
		rdb:     rdb,
		channel: prefix + ":" + symbol + ":alerts",
		timeout: 200 * time.Millisecond,
	}
}

func (c *RedisChannel) Send(alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.rdb.Publish(ctx, c.channel, data).Err()
}

func (c *RedisChannel) Name() string {
	return "redis:" + c.channel
}

// MockChannel 记录收到的告警（用于测试）
type MockChannel struct {
	name      string
	mu        sync.Mutex
	alerts    []Alert
	shouldErr bool
}

func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

func (c *MockChannel) Send(alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shouldErr {
		return fmt.Errorf("mock error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

func (c *MockChannel) Name() string {
	return c.name
}

// Alerts 收到的告警副本
func (c *MockChannel) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldErr = shouldErr
}

func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}
