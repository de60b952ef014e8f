package engine

import (
	"context"
	"fmt"

	"capital_bot/internal/models"
	"capital_bot/pkg/logger"
)

// CloseStrategyTrades закрывает у брокера все открытые сделки стратегии.
// Журнал закроет реконсайлер, когда дилы пропадут из позиций.
func (e *Engine) CloseStrategyTrades(ctx context.Context, strategy string) (int, error) {
	open, err := e.ledger.OpenTrades(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open trades: %w", err)
	}

	closed := 0
	for _, t := range open {
		if t.Strategy != strategy || t.DealID == "" {
			continue
		}
		if err := e.broker.ClosePosition(ctx, t.DealID); err != nil {
			logger.Error("close %s for %s: %v", t.DealID, strategy, err)
			continue
		}
		closed++
	}
	return closed, nil
}

// OpenTrades отдаёт открытые строки журнала для статусных команд.
func (e *Engine) OpenTrades(ctx context.Context) ([]models.Trade, error) {
	return e.ledger.OpenTrades(ctx)
}

// History отдаёт последние сделки журнала.
func (e *Engine) History(ctx context.Context, limit int) ([]models.Trade, error) {
	return e.ledger.History(ctx, limit)
}
