package market

import "sync"

// EstimatorSnapshot 估计器某一时刻的只读副本。
type EstimatorSnapshot struct {
	SigmaBps float64 `json:"sigmaBps"`
	VWAP     float64 `json:"vwap"`
	HasVWAP  bool    `json:"hasVwap"`
	Returns  int     `json:"returns"`
	Trades   int     `json:"trades"`
}

// Estimators 把 VWAP 与波动率窗口放在同一把读写锁后面。
// 单写（行情摄入 goroutine），多读（报价 goroutine 等）。
type Estimators struct {
	mu   sync.RWMutex
	vwap *RollingVWAP
	vol  *RollingVol
}

func NewEstimators(vwapWindow, volWindowSecs, volStepMs int) *Estimators {
	return &Estimators{
		vwap: NewRollingVWAP(vwapWindow),
		vol:  NewRollingVol(volWindowSecs, volStepMs),
	}
}

// OnTrade 把一笔成交同时推入两个窗口。
func (e *Estimators) OnTrade(t Trade) {
	e.mu.Lock()
	e.vwap.Update(t.Px, t.Sz)
	e.vol.Update(t.Px)
	e.mu.Unlock()
}

// Snapshot 返回一致的估计值副本。
func (e *Estimators) Snapshot() EstimatorSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	vwap, ok := e.vwap.Value()
	return EstimatorSnapshot{
		SigmaBps: e.vol.SigmaBps(),
		VWAP:     vwap,
		HasVWAP:  ok,
		Returns:  e.vol.Len(),
		Trades:   e.vwap.Len(),
	}
}
