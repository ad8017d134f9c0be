package strategy

import (
	"errors"
	"fmt"
	"math"

	"cross-venue-mm/config"
	"cross-venue-mm/market"
)

// ErrInvalidQuote 报价结果非有限、非正或买卖价交叉。
var ErrInvalidQuote = errors.New("invalid quote")

const (
	// 预期滑点：参考尺寸能被对冲所一档吃下时取低档
	slippageInsideTopBps  = 1.0
	slippageBeyondTopBps  = 2.0
	volHalfSpreadCoeffBps = 0.35
)

// Quote 一次报价计算结果。
type Quote struct {
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	MidRef        float64 `json:"midRef"`
	HalfSpreadBps float64 `json:"halfSpreadBps"`
}

// Validate 报价不变量：有限、正价、bid < ask。
func (q Quote) Validate() error {
	for _, v := range []float64{q.Bid, q.Ask, q.MidRef, q.HalfSpreadBps} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite %+v", ErrInvalidQuote, q)
		}
	}
	if q.Bid <= 0 || q.Ask <= 0 {
		return fmt.Errorf("%w: non-positive bid=%v ask=%v", ErrInvalidQuote, q.Bid, q.Ask)
	}
	if q.Bid >= q.Ask {
		return fmt.Errorf("%w: crossed bid=%v ask=%v", ErrInvalidQuote, q.Bid, q.Ask)
	}
	return nil
}

// MovedBps 与上一次报价相比，bid/ask 中较大的相对变动（bps）。
// prev 为零值时返回 +Inf，保证第一次报价总会提交。
func (q Quote) MovedBps(prev Quote) float64 {
	if prev.Bid <= 0 || prev.Ask <= 0 {
		return math.Inf(1)
	}
	db := math.Abs(q.Bid-prev.Bid) / prev.Bid * 1e4
	da := math.Abs(q.Ask-prev.Ask) / prev.Ask * 1e4
	return math.Max(db, da)
}

// QuoteEngine 以对冲所微观价格为中心的双边报价模型，无内部状态。
type QuoteEngine struct {
	TakerFeeBps       float64
	RefSizeUSD        float64
	SizeCurveK        float64
	SizeCurveScaleBps float64
}

func NewQuoteEngine(cfg config.AppConfig) QuoteEngine {
	return QuoteEngine{
		TakerFeeBps:       cfg.FeesY.TakerBps,
		RefSizeUSD:        cfg.Quote.SizeUSD,
		SizeCurveK:        cfg.Quote.SizeCurveK,
		SizeCurveScaleBps: cfg.Quote.SizeCurveScaleBps,
	}
}

// ExpectedSlippageBps 报价尺寸不超过对冲所一档较薄一侧的美元深度时为 1bps，否则 2bps。
func ExpectedSlippageBps(book market.BookTop, sizeUSD float64) float64 {
	depthUSD := math.Min(book.BidSz, book.AskSz) * book.Mid()
	if sizeUSD <= depthUSD {
		return slippageInsideTopBps
	}
	return slippageBeyondTopBps
}

// SizePremiumBps 凸性尺寸溢价 scale*(size/ref)^(k-1)，下限为 0。
func (e QuoteEngine) SizePremiumBps(sizeUSD float64) float64 {
	if e.RefSizeUSD <= 0 || sizeUSD <= 0 {
		return 0
	}
	return e.SizeCurveScaleBps * math.Max(0, math.Pow(sizeUSD/e.RefSizeUSD, e.SizeCurveK-1))
}

// HalfSpreadBps = 吃单费 + 预期滑点 + 0.35*sqrt(sigma) + 尺寸溢价。
func (e QuoteEngine) HalfSpreadBps(book market.BookTop, sigmaBps, sizeUSD float64) float64 {
	base := e.TakerFeeBps + ExpectedSlippageBps(book, sizeUSD) + volHalfSpreadCoeffBps*math.Sqrt(math.Max(sigmaBps, 0))
	return base + e.SizePremiumBps(sizeUSD)
}

// Compute 计算双边报价：保留价 r = microprice + 库存偏移，两侧对称展开 h bps。
func (e QuoteEngine) Compute(book market.BookTop, sigmaBps, invSkewPx, sizeUSD float64) Quote {
	m := market.Microprice(book)
	h := e.HalfSpreadBps(book, sigmaBps, sizeUSD)
	r := m + invSkewPx
	return Quote{
		Bid:           r * (1 - h/1e4),
		Ask:           r * (1 + h/1e4),
		MidRef:        m,
		HalfSpreadBps: h,
	}
}
