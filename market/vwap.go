package market

// RollingVWAP 最近 N 笔成交的成交量加权均价（纯滑动窗口，不做衰减）。
// 维护 Σ(price·size) 与 Σ(size)，淘汰最旧的一笔时同步扣减。
type RollingVWAP struct {
	px   []float64
	sz   []float64
	head int
	n    int

	notional float64
	volume   float64
}

// NewRollingVWAP 创建容量为 n 的窗口，n < 1 时按 1 处理。
func NewRollingVWAP(n int) *RollingVWAP {
	if n < 1 {
		n = 1
	}
	return &RollingVWAP{
		px: make([]float64, n),
		sz: make([]float64, n),
	}
}

// Update 追加一笔成交，窗口已满则覆盖最旧的一笔。
func (v *RollingVWAP) Update(price, size float64) {
	if v.n == len(v.px) {
		v.notional -= v.px[v.head] * v.sz[v.head]
		v.volume -= v.sz[v.head]
	} else {
		v.n++
	}
	v.px[v.head] = price
	v.sz[v.head] = size
	v.notional += price * size
	v.volume += size
	v.head = (v.head + 1) % len(v.px)

	// 反复加减会累积浮点误差，窗口成交量归零时直接清零
	if v.volume <= 0 {
		v.volume = 0
		v.notional = 0
	}
}

// Value 返回 VWAP；窗口内无成交量时 ok=false。
func (v *RollingVWAP) Value() (vwap float64, ok bool) {
	if v.volume <= 0 {
		return 0, false
	}
	return v.notional / v.volume, true
}

// Len 窗口内样本数。
func (v *RollingVWAP) Len() int {
	return v.n
}
