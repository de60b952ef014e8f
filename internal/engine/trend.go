package engine

import (
	"capital_bot/internal/models"
)

// refreshTrend пересчитывает старший тренд: close против EMA(period)
// на 30m (таймфрейм и период из конфига). Один раз за тик, для всех
// стратегий.
func (e *Engine) refreshTrend() models.Trend {
	tf := models.Timeframe(e.cfg.TrendTimeframe)
	period := e.cfg.TrendEMAPeriod

	cs := e.buf.View(tf, period+20)
	trend := models.TrendNeutral
	if len(cs) >= period {
		ema := lastEMA(cs, period)
		last := cs[len(cs)-1].Close
		switch {
		case last > ema:
			trend = models.TrendBullish
		case last < ema:
			trend = models.TrendBearish
		}
	}
	e.setTrend(trend)
	return trend
}

func lastEMA(cs []models.Candle, period int) float64 {
	alpha := 2.0 / (float64(period) + 1)
	v := cs[0].Close
	for _, c := range cs[1:] {
		v = alpha*c.Close + (1-alpha)*v
	}
	return v
}

// againstTrend: сигнал идёт против старшего тренда.
func againstTrend(side models.Side, trend models.Trend) bool {
	return (side == models.SideBuy && trend == models.TrendBearish) ||
		(side == models.SideSell && trend == models.TrendBullish)
}
