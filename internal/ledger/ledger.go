package ledger

import (
	"context"
	"time"

	"capital_bot/internal/models"
)

// CloseInfo — итог закрытия сделки, вычисленный реконсайлером.
type CloseInfo struct {
	CloseTime      time.Time
	ClosePrice     float64
	ProfitLoss     float64
	ExitReason     models.ExitReason
	ExitConditions string
}

// Ledger — журнал сделок, единственный источник правды по истории.
// Строки только добавляются и обновляются, удаления нет.
type Ledger interface {
	// Append пишет новую сделку и проставляет trade.ID.
	Append(ctx context.Context, trade *models.Trade) error

	// OpenTrades возвращает сделки в статусах OPENING/OPEN.
	OpenTrades(ctx context.Context) ([]models.Trade, error)

	// History возвращает последние limit сделок, новые первыми.
	// limit<=0 означает все.
	History(ctx context.Context, limit int) ([]models.Trade, error)

	// MarkClosed атомарно переводит сделку по dealID в CLOSED.
	MarkClosed(ctx context.Context, dealID string, info CloseInfo) error

	// UpdateProtection фиксирует новые уровни SL/TP по dealID.
	UpdateProtection(ctx context.Context, dealID string, stop, profit float64) error
}
