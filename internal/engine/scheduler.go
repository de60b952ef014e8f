package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"

	"capital_bot/internal/models"
	advisorsvc "capital_bot/internal/modules/advisor/service"
	stratsvc "capital_bot/internal/modules/strategy/service"
	"capital_bot/pkg/logger"
)

// runScheduler — единственный цикл оценки стратегий. Сам тик никогда
// не блокируется на подтверждении ордера: исполнение уходит в
// отдельную задачу под in-flight guard.
func (e *Engine) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	logger.Info("scheduler started, poll interval %s", e.cfg.PollInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
		if !e.Running() {
			continue
		}
		e.tick(ctx)
	}
}

func (e *Engine) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler tick panic: %v", r)
		}
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "scheduler.tick")
	defer span.Finish()

	e.touchPulse(time.Now())

	trend := e.refreshTrend()

	snap, err := e.broker.GetMarketSnapshot(ctx, e.epic)
	if err != nil {
		logger.Error("scheduler: market snapshot: %v", err)
		return
	}
	mid := snap.Mid()
	if mid <= 0 {
		logger.Error("scheduler: bad mid price %v", mid)
		return
	}

	now := time.Now()
	for _, s := range e.reg.Active() {
		name := s.Name()
		if reason := e.skipReason(name, now); reason != "" {
			logger.Debug("scheduler: skip %s: %s", name, reason)
			continue
		}

		sig := stratsvc.SafeEvaluate(s, e.buf)
		e.setSignal(name, sig)
		if !sig.Directional() {
			continue
		}

		slPct, tpPct, ok := e.resolveRisk(ctx, s, sig, mid, trend)
		if !ok {
			// жёсткий инвариант: без положительных дистанций сделки нет
			logger.Error("scheduler: %s signal rejected, unresolved risk levels", name)
			sig.Side = models.SideError
			sig.Message = "rejected: no positive stop/target distances"
			e.setSignal(name, sig)
			continue
		}

		if e.preventCounterTrend && againstTrend(sig.Side, trend) {
			blocked := sig
			blocked.Side = models.SideHold
			blocked.Message = fmt.Sprintf("%s blocked by %s higher-timeframe trend", sig.Side, trend)
			e.setSignal(name, blocked)
			logger.Info("scheduler: %s %s blocked by %s trend", name, sig.Side, trend)
			continue
		}

		// против тренда тейк поджимается до дистанции стопа
		override := e.cfg.TPEqualsSLAgainstTrend && againstTrend(sig.Side, trend)
		if override {
			tpPct = slPct
		}

		tpPcts := []float64{tpPct}
		if e.cfg.TwoTPTrades && !override {
			second := tpPct - e.cfg.SecondTPReduction
			if second > 0 {
				tpPcts = append(tpPcts, second)
			}
		}

		att := attempt{
			strategy:        name,
			side:            sig.Side,
			size:            e.OrderSize(),
			mid:             mid,
			slPct:           slPct,
			tpPcts:          tpPcts,
			trend:           trend,
			atr:             attrFloat(sig.Attrs, "atr"),
			entryConditions: marshalConditions(sig.Attrs),
		}

		e.setInFlight(name, true)
		e.wg.Add(1)
		go e.execute(ctx, att)
	}
}

// resolveRisk: уровни стратегии -> советник (с таймаутом) -> статические
// множители от ATR. Возвращает ok=false, если дистанции так и не стали
// положительными.
func (e *Engine) resolveRisk(ctx context.Context, s stratsvc.Strategy, sig models.Signal, mid float64, trend models.Trend) (slPct, tpPct float64, ok bool) {
	slPct, tpPct = sig.SLPct, sig.TPPct
	if slPct > 0 && tpPct > 0 {
		return slPct, tpPct, true
	}

	atr := attrFloat(sig.Attrs, "atr")

	slMult, tpMult := 0.0, 0.0
	if e.advisor != nil && e.advisor.Enabled() {
		actx, cancel := context.WithTimeout(ctx, e.cfg.AdvisoryWait)
		sl, tp, err := e.advisor.SuggestRiskLevels(actx, advisorsvc.RiskQuery{
			Strategy:   s.Name(),
			Direction:  string(sig.Side),
			EntryPrice: mid,
			Trend:      string(trend),
			ATR:        atr,
		})
		cancel()
		if err != nil {
			logger.Warn("advisor risk levels for %s: %v, using static multipliers", s.Name(), err)
		} else {
			slMult, tpMult = sl, tp
		}
	}
	if slMult <= 0 || tpMult <= 0 {
		slMult, tpMult = s.RiskFallback()
	}

	if atr > 0 && mid > 0 {
		slPct = slMult * atr / mid
		tpPct = tpMult * atr / mid
	}
	return slPct, tpPct, slPct > 0 && tpPct > 0
}

func attrFloat(attrs map[string]any, key string) float64 {
	if attrs == nil {
		return 0
	}
	if v, ok := attrs[key].(float64); ok {
		return v
	}
	return 0
}

func marshalConditions(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	b, err := sonic.Marshal(attrs)
	if err != nil {
		return ""
	}
	return string(b)
}
