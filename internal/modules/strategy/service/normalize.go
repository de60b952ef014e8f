package service

import (
	"fmt"

	"capital_bot/internal/models"
)

// Normalize приводит любой выход стратегии к безопасному виду.
// Side всегда одно из BUY/SELL/HOLD/ERROR, Message непустой,
// Attrs не nil. Кривой payload сохраняется в Attrs["raw_side"].
func Normalize(name string, sig models.Signal) models.Signal {
	sig.Strategy = name
	if sig.Attrs == nil {
		sig.Attrs = map[string]any{}
	}

	switch sig.Side {
	case models.SideBuy, models.SideSell, models.SideHold, models.SideError:
	default:
		sig.Attrs["raw_side"] = string(sig.Side)
		sig.Side = models.SideHold
		if sig.Message == "" {
			sig.Message = fmt.Sprintf("unrecognized signal %q, treated as HOLD", sig.Attrs["raw_side"])
		}
	}

	// направленный сигнал с неположительными уровнями остаётся направленным,
	// уровни дорешает движок (advisor или статический fallback)
	if sig.SLPct < 0 {
		sig.Attrs["raw_sl_pct"] = sig.SLPct
		sig.SLPct = 0
	}
	if sig.TPPct < 0 {
		sig.Attrs["raw_tp_pct"] = sig.TPPct
		sig.TPPct = 0
	}

	if sig.Message == "" {
		sig.Message = fmt.Sprintf("%s: %s", name, sig.Side)
	}
	return sig
}

// SafeEvaluate изолирует панику стратегии: вместо падения тика
// возвращается ERROR сигнал с текстом паники.
func SafeEvaluate(s Strategy, view MarketView) (sig models.Signal) {
	defer func() {
		if r := recover(); r != nil {
			sig = Normalize(s.Name(), models.Signal{
				Side:    models.SideError,
				Message: fmt.Sprintf("strategy panic: %v", r),
				Attrs:   map[string]any{"panic": fmt.Sprint(r)},
			})
		}
	}()
	return Normalize(s.Name(), s.Evaluate(view))
}
