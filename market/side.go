package market

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSide 非 buy/sell 的方向标签。
var ErrInvalidSide = errors.New("invalid side")

// Side 是买卖方向的封闭枚举，零值非法。
type Side int

const (
	Buy Side = iota + 1
	Sell
)

// ParseSide 解析外部传入的方向字符串（大小写不敏感），其余取值一律拒绝。
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// Valid 判断是否为 Buy/Sell 之一。
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite 返回对手方向；对冲方向即成交方向的反向。
func (s Side) Opposite() Side {
	switch s {
	case Buy:
		return Sell
	case Sell:
		return Buy
	default:
		return s
	}
}

// Sign 买 +1，卖 -1。
func (s Side) Sign() float64 {
	switch s {
	case Buy:
		return 1
	case Sell:
		return -1
	default:
		return 0
	}
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// MarshalText 让 Side 在 JSON / 日志里以 "buy"/"sell" 出现。
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
