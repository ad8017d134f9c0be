package risk

import (
	"fmt"
	"sync"
	"time"

	"cross-venue-mm/config"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	// BreakerClosed 正常报价
	BreakerClosed BreakerState = iota
	// BreakerOpen 冷却中，暂停报价
	BreakerOpen
	// BreakerHalfOpen 冷却结束，下一笔对冲决定恢复还是重新熔断
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// HedgeBreaker 连续对冲失败达到阈值后暂停报价一个冷却期。
// 阈值为 0 时不启用。
type HedgeBreaker struct {
	threshold int
	cooldown  time.Duration
	clock     Clock

	mu          sync.Mutex
	state       BreakerState
	consecutive int
	openedAt    time.Time
	trips       int
}

func NewHedgeBreaker(limits config.RiskLimits, clock Clock) *HedgeBreaker {
	if clock == nil {
		clock = NowUTC
	}
	return &HedgeBreaker{
		threshold: limits.HedgeFailureThreshold,
		cooldown:  time.Duration(limits.HedgeCooldownMs) * time.Millisecond,
		clock:     clock,
	}
}

// Allow 熔断打开且未过冷却期时返回 ErrHedgeBreaker；冷却结束转为半开。
func (b *HedgeBreaker) Allow() error {
	if b.threshold <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return nil
	}
	elapsed := b.clock.Now().Sub(b.openedAt)
	if elapsed >= b.cooldown {
		b.state = BreakerHalfOpen
		return nil
	}
	return fmt.Errorf("%w: %d consecutive failures, %v left", ErrHedgeBreaker, b.consecutive, b.cooldown-elapsed)
}

// RecordSuccess 对冲成功清零连续失败计数，半开时恢复。
func (b *HedgeBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
	}
}

// RecordFailure 记一次对冲失败，本次导致熔断时返回 true。
func (b *HedgeBreaker) RecordFailure() bool {
	if b.threshold <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive++
	switch b.state {
	case BreakerHalfOpen:
		b.open()
		return true
	case BreakerClosed:
		if b.consecutive >= b.threshold {
			b.open()
			return true
		}
	}
	return false
}

func (b *HedgeBreaker) open() {
	b.state = BreakerOpen
	b.openedAt = b.clock.Now()
	b.trips++
}

func (b *HedgeBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Trips 累计熔断次数
func (b *HedgeBreaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// Reset 人工恢复
func (b *HedgeBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.consecutive = 0
	b.openedAt = time.Time{}
}
