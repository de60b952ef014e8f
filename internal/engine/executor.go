package engine

import (
	"context"
	"time"

	"capital_bot/internal/models"
	"capital_bot/pkg/logger"
)

// attempt — одна попытка входа по сигналу. Несколько тейков означают
// несколько ордеров с общим стопом.
type attempt struct {
	strategy        string
	side            models.Side
	size            float64
	mid             float64
	slPct           float64
	tpPcts          []float64
	trend           models.Trend
	atr             float64
	entryConditions string
}

// execute ведёт попытку до терминального состояния:
// Requested -> Confirming -> Protected -> Recorded, либо Failed.
// In-flight guard снимается на любом выходе через defer.
func (e *Engine) execute(ctx context.Context, att attempt) {
	defer e.wg.Done()
	defer e.setInFlight(att.strategy, false)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("executor panic for %s: %v", att.strategy, r)
		}
	}()

	for i, tpPct := range att.tpPcts {
		if i > 0 {
			time.Sleep(time.Second)
		}
		e.openOne(ctx, att, tpPct)
	}
}

func (e *Engine) openOne(ctx context.Context, att attempt, tpPct float64) {
	// предварительные уровни от mid, чтобы ордер не отклонили
	var prelimSL, prelimTP float64
	if att.side == models.SideBuy {
		prelimSL = att.mid * (1 - att.slPct)
		prelimTP = att.mid * (1 + tpPct)
	} else {
		prelimSL = att.mid * (1 + att.slPct)
		prelimTP = att.mid * (1 - tpPct)
	}

	ref, err := e.broker.PlaceMarketOrder(ctx, e.epic, att.side, att.size, prelimSL, prelimTP)
	if err != nil {
		logger.Error("executor: place order for %s: %v", att.strategy, err)
		e.notify.Sendf("❗️ Не удалось открыть сделку (%s): %v", att.strategy, err)
		return
	}

	// подтверждение доводим до конца даже при остановке движка:
	// заполненная незащищённая позиция хуже лишней минуты ожидания
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ConfirmTimeout)
	defer cancel()

	conf, ok := e.awaitFill(cctx, ref)
	if !ok {
		logger.Error("executor: confirmation timeout for %s ref=%s", att.strategy, ref)
		e.notify.Sendf("⏳ Ордер %s (%s) не подтвердился за %s, попытка отброшена",
			ref, att.strategy, e.cfg.ConfirmTimeout)
		return
	}

	fill := conf.Level
	var finalSL, finalTP float64
	if att.side == models.SideBuy {
		finalSL = fill * (1 - att.slPct)
		finalTP = fill * (1 + tpPct)
	} else {
		finalSL = fill * (1 + att.slPct)
		finalTP = fill * (1 - tpPct)
	}

	if err := e.broker.AmendPosition(cctx, conf.DealID, finalSL, finalTP); err != nil {
		// сделка уже живая, записываем как OPEN и требуем ручного вмешательства
		logger.Error("executor: amend %s failed: %v", conf.DealID, err)
		e.notify.Sendf("⚠️ ВНИМАНИЕ: не удалось выставить SL/TP для %s (%s). Проверь позицию вручную!",
			conf.DealID, att.strategy)
	}

	trade := models.Trade{
		OpenTime:        time.Now(),
		Strategy:        att.strategy,
		Epic:            e.epic,
		Direction:       att.side,
		Size:            att.size,
		RequestedPx:     att.mid,
		EntryPrice:      fill,
		StopLevel:       finalSL,
		ProfitLevel:     finalTP,
		DealReference:   ref,
		DealID:          conf.DealID,
		Status:          models.TradeOpen,
		EntryConditions: att.entryConditions,
		TrendAtEntry:    att.trend,
		ATRAtEntry:      att.atr,
	}
	if err := e.ledger.Append(cctx, &trade); err != nil {
		logger.Error("executor: ledger append for %s: %v", conf.DealID, err)
		e.notify.Sendf("❗️ Сделка %s открыта, но не записана в журнал: %v", conf.DealID, err)
		return
	}

	e.addOpenDeal(att.strategy, conf.DealID)
	// кулдаун отсчитывается от записи, не от сигнала
	e.markTraded(att.strategy, time.Now())

	e.notify.Sendf("🟢 Сделка открыта (%s)\nНаправление: %s\nВход: %.2f\nSL: %.2f | TP: %.2f\nDeal ID: %s",
		att.strategy, att.side, fill, finalSL, finalTP, conf.DealID)
}

// awaitFill опрашивает /confirms до статуса OPEN с dealId и ценой.
func (e *Engine) awaitFill(ctx context.Context, ref string) (models.OrderConfirmation, bool) {
	ticker := time.NewTicker(e.cfg.ConfirmPoll)
	defer ticker.Stop()

	for {
		conf, err := e.broker.GetOrderConfirmation(ctx, ref)
		if err != nil {
			logger.Debug("executor: confirmation poll %s: %v", ref, err)
		} else if conf.Status == "OPEN" && conf.DealID != "" && conf.Level > 0 {
			return conf, true
		}

		select {
		case <-ctx.Done():
			return models.OrderConfirmation{}, false
		case <-ticker.C:
		}
	}
}
