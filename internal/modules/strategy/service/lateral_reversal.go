package service

import (
	"fmt"
	"sync"

	"capital_bot/internal/models"
)

// LateralReversal: реверсия внутри боковика по 1m свечам.
// Касание полосы Боллинджера + RSI + подтверждающая свеча + объём.
type LateralReversal struct {
	mu sync.Mutex

	bbWindow    int
	bbDev       float64
	rsiWindow   int
	atrWindow   int
	slMult      float64
	tpMult      float64
	volWindow   int
	volMult     float64
	bbTolerance float64

	rsiOverbought float64
	rsiOversold   float64
}

var lateralAggOB = map[int]float64{
	1: 80, 2: 75, 3: 70, 4: 65, 5: 60,
	6: 55, 7: 50, 8: 45, 9: 40, 10: 35,
}

var lateralAggOS = map[int]float64{
	1: 20, 2: 25, 3: 30, 4: 35, 5: 40,
	6: 45, 7: 50, 8: 55, 9: 60, 10: 65,
}

func NewLateralReversal(aggressiveness int) *LateralReversal {
	s := &LateralReversal{
		bbWindow:  20,
		bbDev:     2.0,
		rsiWindow: 14,
		atrWindow: 14,
		slMult:    1.5,
		tpMult:    1.0,
		volWindow: 20,
		volMult:   1.0,
	}
	s.Reconfigure(aggressiveness)
	return s
}

func (s *LateralReversal) Name() string { return "lateral_reversal" }

func (s *LateralReversal) Reconfigure(aggressiveness int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, ok := lateralAggOB[aggressiveness]
	if !ok {
		ob = 70
	}
	os_, ok := lateralAggOS[aggressiveness]
	if !ok {
		os_ = 30
	}
	s.rsiOverbought = ob
	s.rsiOversold = os_

	// допуск касания полосы растёт с агрессивностью
	switch {
	case aggressiveness <= 2:
		s.bbTolerance = 0.0005
	case aggressiveness >= 9:
		s.bbTolerance = 0.0015
	default:
		s.bbTolerance = 0.0010
	}
}

func (s *LateralReversal) RiskFallback() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slMult, s.tpMult
}

func (s *LateralReversal) Evaluate(view MarketView) models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	need := s.bbWindow + 50
	cs := view.View(models.TF1m, need)
	if len(cs) < need-10 {
		return models.Signal{
			Side:    models.SideHold,
			Message: fmt.Sprintf("insufficient 1m candles: have %d, need %d", len(cs), need-10),
		}
	}

	px := closes(cs)
	mid := sma(px, s.bbWindow)
	dev := stdDev(px, s.bbWindow)
	bbLower := mid - s.bbDev*dev
	bbUpper := mid + s.bbDev*dev

	rsi := rsiSeries(px, s.rsiWindow)
	curATR := atr(cs, s.atrWindow)

	last := cs[len(cs)-1]
	price := last.Close

	vols := make([]float64, len(cs))
	for i, c := range cs {
		vols[i] = c.Volume
	}
	volMA := sma(vols, s.volWindow)

	rsiValue := rsi[len(rsi)-1]
	bullishCandle := last.Close > last.Open
	bearishCandle := last.Close < last.Open
	volumeOK := volMA > 0 && last.Volume > volMA*s.volMult

	var slPct, tpPct float64
	if curATR > 0 && price > 0 {
		slPct = s.slMult * curATR / price
		tpPct = s.tpMult * curATR / price
	}

	attrs := map[string]any{
		"bb_lower": bbLower,
		"bb_upper": bbUpper,
		"rsi":      rsiValue,
		"atr":      curATR,
		"vol_ma":   volMA,
	}

	if price <= bbLower*(1+s.bbTolerance) && rsiValue < s.rsiOversold && bullishCandle && volumeOK {
		return models.Signal{
			Side:    models.SideBuy,
			Entry:   price,
			Message: fmt.Sprintf("bullish reversal off lower band, RSI %.2f", rsiValue),
			SLPct:   slPct,
			TPPct:   tpPct,
			Attrs:   attrs,
		}
	}

	if price >= bbUpper*(1-s.bbTolerance) && rsiValue > s.rsiOverbought && bearishCandle && volumeOK {
		return models.Signal{
			Side:    models.SideSell,
			Entry:   price,
			Message: fmt.Sprintf("bearish reversal off upper band, RSI %.2f", rsiValue),
			SLPct:   slPct,
			TPPct:   tpPct,
			Attrs:   attrs,
		}
	}

	return models.Signal{
		Side: models.SideHold,
		Message: fmt.Sprintf("waiting for reversal: price %.2f (BB %.2f..%.2f), RSI %.2f (OS %.0f, OB %.0f)",
			price, bbLower, bbUpper, rsiValue, s.rsiOversold, s.rsiOverbought),
		Attrs: attrs,
	}
}
