package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cross-venue-mm/gateway"
	"cross-venue-mm/market"
)

var (
	// ErrMissingCredentials 实盘执行缺少 API 凭证。
	ErrMissingCredentials = gateway.ErrMissingCredentials
	// ErrMakerUnresolved maker 单撤单失败，最终成交量未知；回报中的成交量只是下限。
	ErrMakerUnresolved = errors.New("maker order unresolved")
)

const (
	defaultPollInterval = 250 * time.Millisecond
	cancelTimeout       = 5 * time.Second
)

// OrderClient 由 gateway.BinanceRESTClient 实现。
type OrderClient interface {
	PlaceOrder(ctx context.Context, req gateway.OrderRequest) (gateway.OrderResult, error)
	QueryOrder(ctx context.Context, symbol string, orderID int64) (gateway.OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (gateway.OrderResult, error)
}

// VenueY 通过交易所 REST 下单的真实执行器，回报按实际成交量（可能部分成交）。
type VenueY struct {
	Symbol         string
	Client         OrderClient
	PollInterval   time.Duration
	PricePrecision int32
	QtyPrecision   int32
	TakerFeeBps    float64
	MakerFeeBps    float64
	newID          func() string
}

// NewVenueY 凭证缺失时立即失败。
func NewVenueY(symbol string, client *gateway.BinanceRESTClient, pricePrecision, qtyPrecision int32, takerFeeBps, makerFeeBps float64) (*VenueY, error) {
	if client == nil || client.APIKey == "" || client.Secret == "" {
		return nil, ErrMissingCredentials
	}
	return &VenueY{
		Symbol:         symbol,
		Client:         client,
		PollInterval:   defaultPollInterval,
		PricePrecision: pricePrecision,
		QtyPrecision:   qtyPrecision,
		TakerFeeBps:    takerFeeBps,
		MakerFeeBps:    makerFeeBps,
		newID:          uuid.NewString,
	}, nil
}

// IOCCross 以保护价挂 LIMIT IOC；买单价格向下取整、卖单向上取整，保证不越过保护价。
func (v *VenueY) IOCCross(ctx context.Context, side market.Side, qty, refPx, maxSlippageBps float64) (ExecReport, error) {
	if err := checkOrder(side, qty, refPx); err != nil {
		return ExecReport{}, err
	}
	guard := GuardedPrice(side, refPx, maxSlippageBps)
	px := v.roundPrice(side, guard)
	q := decimal.NewFromFloat(qty).RoundFloor(v.QtyPrecision)
	if !q.IsPositive() {
		return ExecReport{AvgPx: guard, Filled: 0, FeeBps: v.TakerFeeBps, Liquidity: Taker}, nil
	}
	res, err := v.Client.PlaceOrder(ctx, gateway.OrderRequest{
		Symbol:        v.Symbol,
		Side:          side,
		Type:          gateway.OrderTypeLimit,
		TimeInForce:   gateway.TimeInForceIOC,
		Price:         px,
		Qty:           q,
		ClientOrderID: v.newID(),
	})
	if err != nil {
		return ExecReport{}, fmt.Errorf("ioc %s %s@%s: %w", side, q, px, err)
	}
	return v.report(res, px, v.TakerFeeBps, Taker), nil
}

// PostMaker 挂 LIMIT_MAKER 并轮询到终态或 ctx 结束；ctx 结束时撤掉剩余部分，
// 回报的成交量以撤单回报为准。会立即成交时交易所拒单，错误原样返回。
func (v *VenueY) PostMaker(ctx context.Context, side market.Side, price, qty float64) (ExecReport, error) {
	if err := checkOrder(side, qty, price); err != nil {
		return ExecReport{}, err
	}
	px := v.roundPrice(side, price)
	q := decimal.NewFromFloat(qty).RoundFloor(v.QtyPrecision)
	if !q.IsPositive() {
		return ExecReport{AvgPx: price, Filled: 0, FeeBps: v.MakerFeeBps, Liquidity: Maker}, nil
	}
	res, err := v.Client.PlaceOrder(ctx, gateway.OrderRequest{
		Symbol:        v.Symbol,
		Side:          side,
		Type:          gateway.OrderTypeLimitMaker,
		Price:         px,
		Qty:           q,
		ClientOrderID: v.newID(),
	})
	if err != nil {
		return ExecReport{}, fmt.Errorf("post maker %s %s@%s: %w", side, q, px, err)
	}
	if !res.Final() {
		res, err = v.awaitMaker(ctx, res)
	}
	return v.report(res, px, v.MakerFeeBps, Maker), err
}

// awaitMaker 轮询挂单直到终态；ctx 结束后撤单。查询失败时沿用上一次的状态继续轮询。
func (v *VenueY) awaitMaker(ctx context.Context, placed gateway.OrderResult) (gateway.OrderResult, error) {
	interval := v.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := placed
	for {
		select {
		case <-ctx.Done():
			return v.cancelMaker(context.WithoutCancel(ctx), last)
		case <-ticker.C:
			res, err := v.Client.QueryOrder(ctx, v.Symbol, placed.OrderID)
			if err != nil {
				continue
			}
			last = res
			if res.Final() {
				return res, nil
			}
		}
	}
}

// cancelMaker 撤掉剩余部分。订单已终结（-2011）时以查询结果为准。
func (v *VenueY) cancelMaker(ctx context.Context, last gateway.OrderResult) (gateway.OrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, cancelTimeout)
	defer cancel()
	res, err := v.Client.CancelOrder(ctx, v.Symbol, last.OrderID)
	if err == nil {
		return res, nil
	}
	if gateway.IsUnknownOrder(err) {
		q, qerr := v.Client.QueryOrder(ctx, v.Symbol, last.OrderID)
		if qerr == nil && q.Final() {
			return q, nil
		}
		if qerr != nil {
			err = qerr
		}
	}
	return last, fmt.Errorf("%w: order %d: %v", ErrMakerUnresolved, last.OrderID, err)
}

func (v *VenueY) roundPrice(side market.Side, px float64) decimal.Decimal {
	d := decimal.NewFromFloat(px)
	if side == market.Buy {
		return d.RoundFloor(v.PricePrecision)
	}
	return d.RoundCeil(v.PricePrecision)
}

func (v *VenueY) report(res gateway.OrderResult, limitPx decimal.Decimal, feeBps float64, liq Liquidity) ExecReport {
	avg := res.AvgPrice()
	if avg.IsZero() {
		avg = limitPx
	}
	return ExecReport{
		AvgPx:     avg.InexactFloat64(),
		Filled:    res.ExecutedQty.InexactFloat64(),
		FeeBps:    feeBps,
		Liquidity: liq,
	}
}
