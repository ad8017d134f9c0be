package risk

import (
	"errors"
	"fmt"
	"math"

	"cross-venue-mm/config"
)

// Manager 库存与对冲所健康度两道检查，无状态。
type Manager struct {
	MaxInventoryUSD float64
	MaxVenueDownMs  int64
}

func NewManager(limits config.RiskLimits) Manager {
	return Manager{
		MaxInventoryUSD: limits.MaxInventoryUSD,
		MaxVenueDownMs:  limits.MaxVenueDownMs,
	}
}

// CheckInventory |inventoryUSD| <= 上限（含边界）。
func (m Manager) CheckInventory(inventoryUSD float64) bool {
	return math.Abs(inventoryUSD) <= m.MaxInventoryUSD
}

// CheckVenueHealth 盘口延迟不超过上限（含边界）。
func (m Manager) CheckVenueHealth(latencyMs int64) bool {
	return latencyMs <= m.MaxVenueDownMs
}

// Evaluate 依次检查库存与对冲所健康度，返回第一个违规。
func (m Manager) Evaluate(inventoryUSD float64, latencyMs int64) error {
	if !m.CheckInventory(inventoryUSD) {
		return fmt.Errorf("%w: |%.2f| > %.2f", ErrInventoryLimit, inventoryUSD, m.MaxInventoryUSD)
	}
	if !m.CheckVenueHealth(latencyMs) {
		return fmt.Errorf("%w: book age %dms > %dms", ErrVenueUnhealthy, latencyMs, m.MaxVenueDownMs)
	}
	return nil
}

// Reason 风控错误对应的指标标签。
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInventoryLimit):
		return "inventory"
	case errors.Is(err, ErrVenueUnhealthy):
		return "venue_down"
	case errors.Is(err, ErrHedgeBreaker):
		return "hedge_breaker"
	default:
		return "other"
	}
}
