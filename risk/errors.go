package risk

import "errors"

var (
	ErrInventoryLimit = errors.New("inventory limit exceeded")
	ErrVenueUnhealthy = errors.New("hedge venue unhealthy")
	ErrHedgeBreaker   = errors.New("hedge breaker open")
)
