package market

import (
	"errors"
	"fmt"
)

// ErrInvalidBook 盘口不满足 0 < bid < ask、size >= 0。
var ErrInvalidBook = errors.New("invalid book")

// BookTop 对冲所（Y）的最优买卖一档，每次更新整体替换。
type BookTop struct {
	BidPx float64 `json:"bidPx"`
	BidSz float64 `json:"bidSz"`
	AskPx float64 `json:"askPx"`
	AskSz float64 `json:"askSz"`
	TsMs  int64   `json:"tsMs"`
}

// Validate 校验盘口不变量。
func (b BookTop) Validate() error {
	if b.BidPx <= 0 || b.AskPx <= 0 {
		return fmt.Errorf("%w: non-positive price bid=%v ask=%v", ErrInvalidBook, b.BidPx, b.AskPx)
	}
	if b.BidSz < 0 || b.AskSz < 0 {
		return fmt.Errorf("%w: negative size bid=%v ask=%v", ErrInvalidBook, b.BidSz, b.AskSz)
	}
	if b.BidPx >= b.AskPx {
		return fmt.Errorf("%w: crossed bid=%v ask=%v", ErrInvalidBook, b.BidPx, b.AskPx)
	}
	return nil
}

// Mid 算术中间价。
func (b BookTop) Mid() float64 {
	return (b.BidPx + b.AskPx) / 2
}

// Microprice 以对侧挂单量加权的参考价：买盘更厚时价格向 ask 靠拢。
// 两侧 size 都为 0 时退化为算术中间价。
func Microprice(b BookTop) float64 {
	total := b.BidSz + b.AskSz
	if total <= 0 {
		return b.Mid()
	}
	return (b.BidPx*b.AskSz + b.AskPx*b.BidSz) / total
}
