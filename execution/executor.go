package execution

import (
	"context"
	"errors"
	"fmt"
	"math"

	"cross-venue-mm/market"
)

var (
	// ErrInvalidQty 数量为负或非有限。
	ErrInvalidQty = errors.New("invalid quantity")
	// ErrInvalidPrice 价格非正或非有限。
	ErrInvalidPrice = errors.New("invalid price")
)

// Executor 对冲所执行接口。
type Executor interface {
	// IOCCross 以 refPx 偏离 maxSlippageBps 的保护价立即成交。
	IOCCross(ctx context.Context, side market.Side, qty, refPx, maxSlippageBps float64) (ExecReport, error)
	// PostMaker 在 price 挂被动单，ctx 结束时撤掉剩余部分；返回时 Filled 为最终成交量。
	PostMaker(ctx context.Context, side market.Side, price, qty float64) (ExecReport, error)
}

// GuardedPrice IOC 保护价：买 refPx*(1+slip)，卖 refPx*(1-slip)。
func GuardedPrice(side market.Side, refPx, maxSlippageBps float64) float64 {
	return refPx * (1 + side.Sign()*maxSlippageBps/1e4)
}

func checkOrder(side market.Side, qty, px float64) error {
	if !side.Valid() {
		return fmt.Errorf("%w: %d", market.ErrInvalidSide, int(side))
	}
	if qty < 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidQty, qty)
	}
	if px <= 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, px)
	}
	return nil
}

// Simulated 确定性执行模型：IOC 以保护价全部成交并收吃单费，
// maker 单在挂单价全部成交并收 maker 费。
type Simulated struct {
	TakerFeeBps float64
	MakerFeeBps float64
}

func NewSimulated(takerFeeBps, makerFeeBps float64) *Simulated {
	return &Simulated{TakerFeeBps: takerFeeBps, MakerFeeBps: makerFeeBps}
}

func (s *Simulated) IOCCross(_ context.Context, side market.Side, qty, refPx, maxSlippageBps float64) (ExecReport, error) {
	if err := checkOrder(side, qty, refPx); err != nil {
		return ExecReport{}, err
	}
	return ExecReport{
		AvgPx:     GuardedPrice(side, refPx, maxSlippageBps),
		Filled:    qty,
		FeeBps:    s.TakerFeeBps,
		Liquidity: Taker,
	}, nil
}

func (s *Simulated) PostMaker(_ context.Context, side market.Side, price, qty float64) (ExecReport, error) {
	if err := checkOrder(side, qty, price); err != nil {
		return ExecReport{}, err
	}
	return ExecReport{
		AvgPx:     price,
		Filled:    qty,
		FeeBps:    s.MakerFeeBps,
		Liquidity: Maker,
	}, nil
}
