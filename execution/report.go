package execution

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLiquidity 非 taker/maker 的流动性标签。
var ErrInvalidLiquidity = errors.New("invalid liquidity")

// Liquidity 成交的流动性角色。
type Liquidity int

const (
	Taker Liquidity = iota + 1
	Maker
)

func ParseLiquidity(s string) (Liquidity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "taker":
		return Taker, nil
	case "maker":
		return Maker, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLiquidity, s)
	}
}

func (l Liquidity) String() string {
	switch l {
	case Taker:
		return "taker"
	case Maker:
		return "maker"
	default:
		return "unknown"
	}
}

func (l Liquidity) MarshalText() ([]byte, error) {
	if l != Taker && l != Maker {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLiquidity, int(l))
	}
	return []byte(l.String()), nil
}

func (l *Liquidity) UnmarshalText(b []byte) error {
	v, err := ParseLiquidity(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ExecReport 对冲所一条腿的执行结果。Filled 可能小于请求数量（部分成交）。
type ExecReport struct {
	AvgPx     float64   `json:"avgPx"`
	Filled    float64   `json:"filled"`
	FeeBps    float64   `json:"feeBps"`
	Liquidity Liquidity `json:"liquidity"`
}

// NotionalUSD 成交金额。
func (r ExecReport) NotionalUSD() float64 {
	return r.AvgPx * r.Filled
}
