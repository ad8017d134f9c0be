package market

import "sync/atomic"

// BookHolder 保存最新盘口；Store 整体替换指针，读者拿到的永远是完整的一档。
type BookHolder struct {
	p atomic.Pointer[BookTop]
}

// Store 替换当前盘口。
func (h *BookHolder) Store(b BookTop) {
	h.p.Store(&b)
}

// Load 返回盘口副本；尚未收到盘口时 ok=false。
func (h *BookHolder) Load() (BookTop, bool) {
	b := h.p.Load()
	if b == nil {
		return BookTop{}, false
	}
	return *b, true
}
