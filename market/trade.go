package market

import "fmt"

// Trade 对冲所最新成交（Side 为 taker 方向），只用于估计器，不做留存。
type Trade struct {
	Px   float64 `json:"px"`
	Sz   float64 `json:"sz"`
	Side Side    `json:"side"`
	TsMs int64   `json:"tsMs"`
}

// FillOnX 做市所（X）上自身挂单的成交回报；Side 为我方成交方向
// （被吃 ask 即 Sell）。收到后不可变，且只触发一次对冲。
type FillOnX struct {
	Px      float64 `json:"px"`
	Sz      float64 `json:"sz"`
	Side    Side    `json:"side"`
	TsMs    int64   `json:"tsMs"`
	OrderID string  `json:"orderId"`
}

// Validate 成交回报前置校验。
func (f FillOnX) Validate() error {
	if !f.Side.Valid() {
		return fmt.Errorf("%w: fill %s", ErrInvalidSide, f.OrderID)
	}
	if f.Px <= 0 || f.Sz <= 0 {
		return fmt.Errorf("invalid fill %s: px=%v sz=%v", f.OrderID, f.Px, f.Sz)
	}
	return nil
}

// Sink 行情源推送的目标；由唯一的行情摄入 goroutine 同步调用。
type Sink interface {
	OnBook(BookTop)
	OnTrade(Trade)
}
