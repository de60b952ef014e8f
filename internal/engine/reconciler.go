package engine

import (
	"context"
	"time"

	"capital_bot/internal/helper"
	"capital_bot/internal/ledger"
	"capital_bot/internal/models"
	advisorsvc "capital_bot/internal/modules/advisor/service"
	"capital_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// runReconciler — независимый цикл сверки журнала с брокером.
// Ошибки цикла логируются и не валят процесс, следующая попытка
// через ReconcileInterval.
func (e *Engine) runReconciler(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	logger.Info("reconciler started, interval %s", e.cfg.ReconcileInterval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("reconciler stopped")
			return
		case <-ticker.C:
		}
		if !e.Running() {
			continue
		}
		e.reconcile(ctx)
	}
}

func (e *Engine) reconcile(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("reconciler panic: %v", r)
		}
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "reconciler.cycle")
	defer span.Finish()

	open, err := e.ledger.OpenTrades(ctx)
	if err != nil {
		logger.Error("reconciler: load open trades: %v", err)
		return
	}

	tracked := open[:0:0]
	for _, t := range open {
		if t.DealID != "" && t.Status == models.TradeOpen {
			tracked = append(tracked, t)
		}
	}
	if len(tracked) == 0 {
		return
	}

	if e.advisor != nil && e.advisor.ManagesOpenTrades() {
		e.manageOpenTrades(ctx, tracked)
	}

	positions, err := e.broker.GetOpenPositions(ctx)
	if err != nil {
		logger.Error("reconciler: broker positions: %v", err)
		return
	}
	alive := make(map[string]bool, len(positions))
	for _, p := range positions {
		alive[p.DealID] = true
	}

	var closed []models.Trade
	for _, t := range tracked {
		if !alive[t.DealID] {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		return
	}

	since := time.Now().Add(-e.cfg.HistoryLookback)
	txs, err := e.broker.GetTransactionHistory(ctx, since)
	if err != nil {
		logger.Error("reconciler: transaction history: %v", err)
		return
	}

	for _, t := range closed {
		trx, found := findCloseTransaction(txs, t.DealID)
		if !found {
			// транзакция ещё не появилась, дожмём на следующем цикле
			logger.Warn("reconciler: deal %s gone from broker, close transaction not found yet", t.DealID)
			continue
		}

		pnl := helper.ParseMoney(trx.Size)
		closePrice := helper.ParseMoney(trx.Price)
		reason := classifyExit(closePrice, t.StopLevel, t.ProfitLevel, e.cfg.ExitTolerance)

		info := ledger.CloseInfo{
			CloseTime:      trx.Date,
			ClosePrice:     closePrice,
			ProfitLoss:     pnl,
			ExitReason:     reason,
			ExitConditions: e.exitConditions(ctx),
		}
		if err := e.ledger.MarkClosed(ctx, t.DealID, info); err != nil {
			logger.Error("reconciler: mark closed %s: %v", t.DealID, err)
			continue
		}

		e.removeOpenDeal(t.Strategy, t.DealID)
		e.notify.Sendf("🔴 Сделка закрыта (%s)\nDeal ID: %s\nРезультат: %+.2f %s\nЦена закрытия: %.2f\nПричина: %s",
			t.Strategy, t.DealID, pnl, trx.Currency, closePrice, reason)
	}
}

func findCloseTransaction(txs []models.Transaction, dealID string) (models.Transaction, bool) {
	for _, trx := range txs {
		if trx.DealID == dealID && trx.Note == "Trade closed" {
			return trx, true
		}
	}
	return models.Transaction{}, false
}

// classifyExit — эвристика по близости цены закрытия к уровням.
// Всё, что не попало в допуск, помечается Manual/Other.
func classifyExit(closePrice, stop, profit, tol float64) models.ExitReason {
	if closePrice <= 0 {
		return models.ExitManual
	}
	switch {
	case stop > 0 && helper.WithinPct(closePrice, stop, tol):
		return models.ExitStopLoss
	case profit > 0 && helper.WithinPct(closePrice, profit, tol):
		return models.ExitTakeProfit
	default:
		return models.ExitManual
	}
}

// exitConditions — снапшот рынка на момент закрытия для журнала.
func (e *Engine) exitConditions(ctx context.Context) string {
	snap, err := e.broker.GetMarketSnapshot(ctx, e.epic)
	if err != nil {
		return ""
	}
	return marshalConditions(map[string]any{
		"bid":   snap.Bid,
		"offer": snap.Offer,
		"trend": string(e.Trend()),
	})
}

// manageOpenTrades отдаёт открытые сделки на пересмотр советнику
// до сверки закрытий. Решение советника исполняется сразу.
func (e *Engine) manageOpenTrades(ctx context.Context, trades []models.Trade) {
	snap, err := e.broker.GetMarketSnapshot(ctx, e.epic)
	if err != nil {
		logger.Error("reconciler: snapshot for trade management: %v", err)
		return
	}
	cur := snap.Mid()

	for _, t := range trades {
		review := advisorsvc.TradeReview{
			DealID:       t.DealID,
			Strategy:     t.Strategy,
			Direction:    string(t.Direction),
			EntryPrice:   t.EntryPrice,
			StopLevel:    t.StopLevel,
			ProfitLevel:  t.ProfitLevel,
			CurrentPrice: cur,
			ATR:          t.ATRAtEntry,
			Trend:        string(e.Trend()),
		}

		actx, cancel := context.WithTimeout(ctx, e.cfg.AdvisoryWait)
		advice, err := e.advisor.AdviseOnOpenTrade(actx, review)
		cancel()
		if err != nil {
			logger.Warn("advisor on %s: %v", t.DealID, err)
			continue
		}
		logger.Info("advisor on %s: %s (%s)", t.DealID, advice.Decision, advice.Reason)

		switch advice.Decision {
		case advisorsvc.DecisionAdjust:
			if advice.SLMult <= 0 || advice.TPMult <= 0 || t.ATRAtEntry <= 0 || t.EntryPrice <= 0 {
				logger.Warn("advisor ADJUST_SLTP for %s without usable multipliers, ignored", t.DealID)
				continue
			}
			slPct := advice.SLMult * t.ATRAtEntry / t.EntryPrice
			tpPct := advice.TPMult * t.ATRAtEntry / t.EntryPrice
			var newSL, newTP float64
			if t.Direction == models.SideBuy {
				newSL = t.EntryPrice * (1 - slPct)
				newTP = t.EntryPrice * (1 + tpPct)
			} else {
				newSL = t.EntryPrice * (1 + slPct)
				newTP = t.EntryPrice * (1 - tpPct)
			}
			if err := e.broker.AmendPosition(ctx, t.DealID, newSL, newTP); err != nil {
				logger.Error("advisor adjust %s: %v", t.DealID, err)
				continue
			}
			if err := e.ledger.UpdateProtection(ctx, t.DealID, newSL, newTP); err != nil {
				logger.Error("advisor adjust ledger %s: %v", t.DealID, err)
			}
			e.notify.Sendf("🤖 Советник сдвинул уровни %s (%s)\nSL: %.2f | TP: %.2f\nПричина: %s",
				t.DealID, t.Strategy, newSL, newTP, advice.Reason)

		case advisorsvc.DecisionClose:
			if err := e.broker.ClosePosition(ctx, t.DealID); err != nil {
				logger.Error("advisor close %s: %v", t.DealID, err)
				continue
			}
			// журнал закроет сверка, когда сделка пропадёт из позиций
			e.notify.Sendf("🤖 Советник закрыл сделку %s (%s)\nПричина: %s",
				t.DealID, t.Strategy, advice.Reason)
		}
	}
}
