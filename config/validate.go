package config

import "math"

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate enforces ranges on every tunable. Credentials are not required
// here: dry-run mode runs without them and the REST client fails fast instead.
func Validate(cfg AppConfig) error {
	if cfg.Symbol == "" {
		return ErrInvalid("symbol is required")
	}
	if cfg.FeesY.TakerBps < 0 || cfg.FeesY.MakerBps < 0 {
		return ErrInvalid("feesY must be >= 0")
	}
	h := cfg.Hedge
	if h.TakerFraction < 0 || h.TakerFraction > 1 || math.IsNaN(h.TakerFraction) {
		return ErrInvalid("hedge.takerFraction must be within [0, 1]")
	}
	if h.MakerTimeoutMs <= 0 {
		return ErrInvalid("hedge.makerTimeoutMs must be > 0")
	}
	if h.MaxSlippageBps < 0 {
		return ErrInvalid("hedge.maxSlippageBps must be >= 0")
	}
	if h.PostBpsFromMicro < 0 {
		return ErrInvalid("hedge.postBpsFromMicro must be >= 0")
	}
	r := cfg.Risk
	if r.MaxInventoryUSD <= 0 {
		return ErrInvalid("risk.maxInventoryUsd must be > 0")
	}
	if r.MaxOrderRatePerS <= 0 {
		return ErrInvalid("risk.maxOrderRatePerS must be > 0")
	}
	if r.MaxVenueDownMs <= 0 {
		return ErrInvalid("risk.maxVenueDownMs must be > 0")
	}
	if r.HedgeFailureThreshold < 0 || r.HedgeCooldownMs < 0 {
		return ErrInvalid("risk.hedgeFailureThreshold/hedgeCooldownMs must be >= 0")
	}
	q := cfg.Quote
	if q.BaseRefreshMs <= 0 {
		return ErrInvalid("quote.baseRefreshMs must be > 0")
	}
	if q.EpsilonMoveBps < 0 {
		return ErrInvalid("quote.epsilonMoveBps must be >= 0")
	}
	if q.VolWindowSecs <= 0 || q.VolStepMs <= 0 {
		return ErrInvalid("quote.volWindowSecs/volStepMs must be > 0")
	}
	if 1000*q.VolWindowSecs/q.VolStepMs < 2 {
		return ErrInvalid("quote vol window must hold at least 2 returns")
	}
	if q.VWAPWindowTrades <= 0 {
		return ErrInvalid("quote.vwapWindowTrades must be > 0")
	}
	if q.SizeUSD <= 0 {
		return ErrInvalid("quote.sizeUsd must be > 0")
	}
	if q.SizeCurveK <= 1 {
		return ErrInvalid("quote.sizeCurveK must be > 1")
	}
	if q.SizeCurveScaleBps < 0 {
		return ErrInvalid("quote.sizeCurveScaleBps must be >= 0")
	}
	if cfg.Inventory.Gamma < 0 {
		return ErrInvalid("inventory.gamma must be >= 0")
	}
	if cfg.Inventory.HorizonSecs <= 0 {
		return ErrInvalid("inventory.horizonSecs must be > 0")
	}
	if cfg.Gateway.RecvWindowMs < 0 {
		return ErrInvalid("gateway.recvWindowMs must be >= 0")
	}
	if cfg.Gateway.PricePrecision < 0 || cfg.Gateway.QtyPrecision < 0 {
		return ErrInvalid("gateway precision must be >= 0")
	}
	if cfg.Status.RedisDB < 0 {
		return ErrInvalid("status.redisDB must be >= 0")
	}
	return nil
}

// HasCredentials 实盘模式下必须提供 apiKey/apiSecret（或环境变量覆盖）。
func (c AppConfig) HasCredentials() bool {
	return c.Gateway.APIKey != "" && c.Gateway.APISecret != ""
}
