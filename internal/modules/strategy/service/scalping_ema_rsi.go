package service

import (
	"fmt"
	"sync"

	"capital_bot/internal/models"
)

// ScalpingEMARSI: скальпинг на кроссовере EMA(8)/EMA(21) с подтверждением RSI(14).
// Работает по 5m свечам, уровни риска считает от ATR.
type ScalpingEMARSI struct {
	mu sync.Mutex

	emaFastPeriod int
	emaSlowPeriod int
	rsiPeriod     int
	atrPeriod     int
	slMult        float64
	tpMult        float64

	// пороги подтверждения RSI, зависят от агрессивности
	rsiBuyMax  float64
	rsiSellMin float64
}

// rsi-пороги по уровням 1..10, от консервативного к разрешающему
var scalpingAggLevels = map[int][2]float64{
	1:  {45, 55},
	2:  {48, 52},
	3:  {55, 45},
	4:  {54, 46},
	5:  {57, 43},
	6:  {60, 40},
	7:  {63, 37},
	8:  {66, 34},
	9:  {69, 31},
	10: {72, 28},
}

func NewScalpingEMARSI(aggressiveness int) *ScalpingEMARSI {
	s := &ScalpingEMARSI{
		emaFastPeriod: 8,
		emaSlowPeriod: 21,
		rsiPeriod:     14,
		atrPeriod:     14,
		slMult:        1.5,
		tpMult:        1.0,
	}
	s.Reconfigure(aggressiveness)
	return s
}

func (s *ScalpingEMARSI) Name() string { return "scalping_ema_rsi" }

func (s *ScalpingEMARSI) Reconfigure(aggressiveness int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lv, ok := scalpingAggLevels[aggressiveness]
	if !ok {
		lv = scalpingAggLevels[5]
	}
	s.rsiBuyMax = lv[0]
	s.rsiSellMin = lv[1]
}

func (s *ScalpingEMARSI) RiskFallback() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slMult, s.tpMult
}

func (s *ScalpingEMARSI) Evaluate(view MarketView) models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	need := s.emaSlowPeriod + s.rsiPeriod + 5
	cs := view.View(models.TF5m, need+s.atrPeriod)
	if len(cs) < need {
		return models.Signal{
			Side:    models.SideHold,
			Message: fmt.Sprintf("insufficient 5m candles: have %d, need %d", len(cs), need),
		}
	}

	px := closes(cs)
	emaFast := emaSeries(px, s.emaFastPeriod)
	emaSlow := emaSeries(px, s.emaSlowPeriod)
	rsi := rsiSeries(px, s.rsiPeriod)

	last := len(cs) - 1
	prev := last - 1

	curATR := atr(cs, s.atrPeriod)
	close_ := px[last]

	var slPct, tpPct float64
	if curATR > 0 && close_ > 0 {
		slPct = s.slMult * curATR / close_
		tpPct = s.tpMult * curATR / close_
	}

	attrs := map[string]any{
		"ema_fast": emaFast[last],
		"ema_slow": emaSlow[last],
		"rsi":      rsi[last],
		"atr":      curATR,
	}

	buyCross := emaFast[prev] < emaSlow[prev] && emaFast[last] > emaSlow[last]
	if buyCross && rsi[last] < s.rsiBuyMax {
		attrs["crossover"] = "BUY"
		return models.Signal{
			Side:    models.SideBuy,
			Entry:   close_,
			Message: fmt.Sprintf("bullish EMA crossover, RSI %.2f < %.0f", rsi[last], s.rsiBuyMax),
			SLPct:   slPct,
			TPPct:   tpPct,
			Attrs:   attrs,
		}
	}

	sellCross := emaFast[prev] > emaSlow[prev] && emaFast[last] < emaSlow[last]
	if sellCross && rsi[last] > s.rsiSellMin {
		attrs["crossover"] = "SELL"
		return models.Signal{
			Side:    models.SideSell,
			Entry:   close_,
			Message: fmt.Sprintf("bearish EMA crossover, RSI %.2f > %.0f", rsi[last], s.rsiSellMin),
			SLPct:   slPct,
			TPPct:   tpPct,
			Attrs:   attrs,
		}
	}

	return models.Signal{
		Side: models.SideHold,
		Message: fmt.Sprintf("no crossover: EMA%d %.2f / EMA%d %.2f, RSI %.2f",
			s.emaFastPeriod, emaFast[last], s.emaSlowPeriod, emaSlow[last], rsi[last]),
		Attrs: attrs,
	}
}
