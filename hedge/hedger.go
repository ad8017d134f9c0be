package hedge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"cross-venue-mm/config"
	"cross-venue-mm/execution"
	"cross-venue-mm/market"
)

var (
	// ErrSplitInvariant taker/maker 拆分之和与目标数量不一致，整笔放弃。
	ErrSplitInvariant = errors.New("hedge split invariant violated")
	// ErrLegFailed 某条对冲腿下单失败；已完成的腿随错误一并返回。
	ErrLegFailed = errors.New("hedge leg failed")
)

// splitEpsilon 拆分校验的相对容差。
const splitEpsilon = 1e-9

// Params 对冲参数，来自 config.HedgeParams。
type Params struct {
	TakerFraction    float64
	MaxSlippageBps   float64
	PostBpsFromMicro float64
	MakerTimeout     time.Duration
	EscalateMaker    bool
}

func ParamsFromConfig(h config.HedgeParams) Params {
	return Params{
		TakerFraction:    h.TakerFraction,
		MaxSlippageBps:   h.MaxSlippageBps,
		PostBpsFromMicro: h.PostBpsFromMicro,
		MakerTimeout:     time.Duration(h.MakerTimeoutMs) * time.Millisecond,
		EscalateMaker:    h.EscalateMaker,
	}
}

// Hedger 把做市所的成交在对冲所拆成 IOC 与 maker 两条腿反向对冲。不做重试。
type Hedger struct {
	params Params
	exec   execution.Executor
	logger *zap.Logger
}

func New(params Params, exec execution.Executor, logger *zap.Logger) *Hedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hedger{params: params, exec: exec, logger: logger}
}

// Split 按 takerFraction 拆分数量，并校验两部分之和。
func Split(qty, takerFraction float64) (taker, maker float64, err error) {
	taker = qty * takerFraction
	maker = qty - taker
	if taker < 0 || maker < 0 || math.Abs(taker+maker-qty) > splitEpsilon*math.Max(1, math.Abs(qty)) {
		return 0, 0, fmt.Errorf("%w: qty=%v taker=%v maker=%v", ErrSplitInvariant, qty, taker, maker)
	}
	return taker, maker, nil
}

// MakerPrice maker 腿价格：买单低于参考价 post bps，卖单高于参考价。
func MakerPrice(side market.Side, refPx, postBps float64) float64 {
	return refPx * (1 - side.Sign()*postBps/1e4)
}

// HedgeFill 对冲做市所方向为 sideOnX、数量为 qty 的成交。
// 报告按下单顺序返回：先 taker，后 maker，启用升级时可能追加一笔 taker。
// 升级只针对 maker 单撤掉后确认未成交的数量。
func (h *Hedger) HedgeFill(ctx context.Context, sideOnX market.Side, qty, refPx float64) ([]execution.ExecReport, error) {
	if !sideOnX.Valid() {
		return nil, fmt.Errorf("%w: %d", market.ErrInvalidSide, int(sideOnX))
	}
	if qty < 0 || math.IsNaN(qty) {
		return nil, fmt.Errorf("%w: %v", execution.ErrInvalidQty, qty)
	}
	side := sideOnX.Opposite()
	takerQty, makerQty, err := Split(qty, h.params.TakerFraction)
	if err != nil {
		return nil, err
	}

	reports := make([]execution.ExecReport, 0, 3)
	if takerQty > 0 {
		r, err := h.exec.IOCCross(ctx, side, takerQty, refPx, h.params.MaxSlippageBps)
		if err != nil {
			return reports, fmt.Errorf("%w: taker %s %v: %v", ErrLegFailed, side, takerQty, err)
		}
		reports = append(reports, r)
	}
	if makerQty <= 0 {
		return reports, nil
	}

	// PostMaker 返回时 maker 单已终结或已撤，Filled 为最终成交量
	price := MakerPrice(side, refPx, h.params.PostBpsFromMicro)
	r, err := h.postMaker(ctx, side, price, makerQty)
	if err != nil {
		if r.Filled > 0 {
			reports = append(reports, r)
		}
		return reports, fmt.Errorf("%w: maker %s %v@%v: %v", ErrLegFailed, side, makerQty, price, err)
	}
	reports = append(reports, r)

	remainder := makerQty - r.Filled
	if remainder <= splitEpsilon*math.Max(1, qty) {
		return reports, nil
	}
	if !h.params.EscalateMaker || ctx.Err() != nil {
		h.logger.Info("maker leg expired unfilled",
			zap.String("side", side.String()),
			zap.Float64("price", price),
			zap.Float64("unfilled", remainder))
		return reports, nil
	}
	esc, err := h.exec.IOCCross(ctx, side, remainder, refPx, h.params.MaxSlippageBps)
	if err != nil {
		return reports, fmt.Errorf("%w: escalate %s %v: %v", ErrLegFailed, side, remainder, err)
	}
	return append(reports, esc), nil
}

func (h *Hedger) postMaker(ctx context.Context, side market.Side, price, qty float64) (execution.ExecReport, error) {
	if h.params.MakerTimeout <= 0 {
		return h.exec.PostMaker(ctx, side, price, qty)
	}
	mctx, cancel := context.WithTimeout(ctx, h.params.MakerTimeout)
	defer cancel()
	return h.exec.PostMaker(mctx, side, price, qty)
}

// FilledQty 报告成交量之和。
func FilledQty(reports []execution.ExecReport) float64 {
	var sum float64
	for _, r := range reports {
		sum += r.Filled
	}
	return sum
}
