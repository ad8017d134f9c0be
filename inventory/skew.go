package inventory

// Skew 把波动率和库存转换成保留价偏移（价格单位）。
// eta = gamma * sigma^2 * (horizon/60)，sigma 由 bps 换算为小数。
type Skew struct {
	Gamma       float64
	HorizonSecs int
}

func NewSkew(gamma float64, horizonSecs int) Skew {
	return Skew{Gamma: gamma, HorizonSecs: horizonSecs}
}

// ReservationSkew 返回 -eta * qty * px：多头得到负偏移（倾向卖出），空头相反。
func (s Skew) ReservationSkew(sigmaBps, qty, px float64) float64 {
	if qty == 0 {
		return 0
	}
	sigma := sigmaBps / 1e4
	eta := s.Gamma * sigma * sigma * (float64(s.HorizonSecs) / 60)
	return -eta * qty * px
}
