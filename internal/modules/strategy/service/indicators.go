package service

import (
	"math"

	"capital_bot/internal/models"
)

type emaState struct {
	period int
	alpha  float64
	value  float64
	warmup int
}

func newEMA(period int) emaState {
	if period <= 1 {
		period = 1
	}
	return emaState{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}
}

func (e *emaState) Update(price float64) {
	if e.warmup == 0 {
		e.value = price
		e.warmup = 1
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
	if e.warmup < e.period {
		e.warmup++
	}
}

func (e *emaState) Ready() bool    { return e.warmup >= e.period }
func (e *emaState) Value() float64 { return e.value }

// emaSeries прогоняет emaState по всем значениям и возвращает серию.
// Первые period-1 точек не прогреты, но уже содержат приближение.
func emaSeries(values []float64, period int) []float64 {
	st := newEMA(period)
	out := make([]float64, len(values))
	for i, v := range values {
		st.Update(v)
		out[i] = st.Value()
	}
	return out
}

func closes(cs []models.Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// rsiSeries — Wilder RSI по close.
func rsiSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < 2 || period < 1 {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i < len(values); i++ {
		diff := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		if i <= period {
			avgGain += gain / float64(period)
			avgLoss += loss / float64(period)
		} else {
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}
		if i >= period {
			if avgLoss == 0 {
				out[i] = 100
			} else {
				rs := avgGain / avgLoss
				out[i] = 100 - 100/(1+rs)
			}
		}
	}
	return out
}

// atr — Wilder ATR по последним свечам, 0 если данных мало.
func atr(cs []models.Candle, period int) float64 {
	if len(cs) < period+1 || period < 1 {
		return 0
	}
	trueRange := func(i int) float64 {
		hl := cs[i].High - cs[i].Low
		hc := math.Abs(cs[i].High - cs[i-1].Close)
		lc := math.Abs(cs[i].Low - cs[i-1].Close)
		return math.Max(hl, math.Max(hc, lc))
	}
	var v float64
	for i := 1; i <= period; i++ {
		v += trueRange(i) / float64(period)
	}
	for i := period + 1; i < len(cs); i++ {
		v = (v*float64(period-1) + trueRange(i)) / float64(period)
	}
	return v
}

// sma по последним window значениям, 0 если данных мало.
func sma(values []float64, window int) float64 {
	if len(values) < window || window < 1 {
		return 0
	}
	var sum float64
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// stdDev по последним window значениям относительно их SMA.
func stdDev(values []float64, window int) float64 {
	if len(values) < window || window < 1 {
		return 0
	}
	mean := sma(values, window)
	var sum float64
	for _, v := range values[len(values)-window:] {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(window))
}
