package models

// Side как в раннере: "BUY"/"SELL", плюс HOLD/ERROR для статуса.
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideHold  Side = "HOLD"
	SideError Side = "ERROR"
)

// Signal — результат одного прогона стратегии.
// SLPct/TPPct — доли от цены входа (0.004 => 0.4%), не проценты.
type Signal struct {
	Strategy string
	Side     Side
	Message  string
	Entry    float64
	SLPct    float64
	TPPct    float64

	// свободные диагностические атрибуты (ATR, значения индикаторов, raw payload)
	Attrs map[string]any
}

func (s Signal) Directional() bool {
	return s.Side == SideBuy || s.Side == SideSell
}
