package gateway

import "time"

// Backoff 指数退避：Base * 2^attempt，上限 Max。
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff 行情重连与成交源重试使用。
func DefaultBackoff() Backoff {
	return Backoff{Base: 200 * time.Millisecond, Max: 10 * time.Second}
}

// Next 返回第 attempt 次重试前的等待时间；attempt 为负时返回 Base。
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}
	// 2^30 倍的任何 Base 都已远超合理上限
	if attempt > 30 {
		return b.Max
	}
	d := b.Base * time.Duration(1<<attempt)
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}
