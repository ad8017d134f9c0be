package inventory

import (
	"sync"

	"cross-venue-mm/market"
)

// State 库存快照：Qty 为带符号的基础资产数量，PvUSD 为按标记价的美元市值。
type State struct {
	Qty   float64 `json:"qty"`
	PvUSD float64 `json:"pvUsd"`
}

// At 以 px 重新估值的副本，不改动 Tracker。
func (s State) At(px float64) State {
	return State{Qty: s.Qty, PvUSD: s.Qty * px}
}

// Tracker 维护净仓位。
// 只有成交处理 goroutine 调用 Apply*，其余组件只通过 Snapshot 读取副本。
type Tracker struct {
	mu   sync.RWMutex
	net  float64
	mark float64
}

// Apply 根据成交数量调整仓位，并以 markPx 重新估值，返回更新后的快照。
func (t *Tracker) Apply(deltaQty float64, markPx float64) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.net += deltaQty
	if markPx > 0 {
		t.mark = markPx
	}
	return t.stateLocked()
}

// ApplyFill 做市所成交：卖出减仓，买入加仓。
func (t *Tracker) ApplyFill(f market.FillOnX) State {
	return t.Apply(f.Side.Sign()*f.Sz, f.Px)
}

// ApplyHedge 对冲所成交按对冲方向计入净仓位。
func (t *Tracker) ApplyHedge(side market.Side, filled, px float64) State {
	return t.Apply(side.Sign()*filled, px)
}

// Snapshot 返回当前库存副本。
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stateLocked()
}

func (t *Tracker) stateLocked() State {
	return State{Qty: t.net, PvUSD: t.net * t.mark}
}
