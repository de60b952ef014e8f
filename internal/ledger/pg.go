package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"capital_bot/internal/models"
	"capital_bot/pkg/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id               BIGSERIAL PRIMARY KEY,
	open_time        TIMESTAMPTZ NOT NULL,
	strategy         TEXT NOT NULL,
	epic             TEXT NOT NULL,
	direction        TEXT NOT NULL,
	size             DOUBLE PRECISION NOT NULL,
	requested_px     DOUBLE PRECISION NOT NULL,
	entry_price      DOUBLE PRECISION NOT NULL,
	stop_level       DOUBLE PRECISION NOT NULL,
	profit_level     DOUBLE PRECISION NOT NULL,
	deal_reference   TEXT NOT NULL,
	deal_id          TEXT NOT NULL,
	status           TEXT NOT NULL,
	profit_loss      DOUBLE PRECISION NOT NULL DEFAULT 0,
	close_time       TIMESTAMPTZ,
	close_price      DOUBLE PRECISION NOT NULL DEFAULT 0,
	exit_reason      TEXT NOT NULL DEFAULT '',
	entry_conditions TEXT NOT NULL DEFAULT '',
	exit_conditions  TEXT NOT NULL DEFAULT '',
	trend_at_entry   TEXT NOT NULL DEFAULT '',
	atr_at_entry     DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS trades_status_idx ON trades (status);
CREATE INDEX IF NOT EXISTS trades_deal_id_idx ON trades (deal_id);
`

// Pg — журнал сделок поверх Postgres.
type Pg struct {
	db db.TxManager
}

func NewPg(txm db.TxManager) *Pg {
	return &Pg{db: txm}
}

// EnsureSchema создаёт таблицу при старте.
func (p *Pg) EnsureSchema(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.EnsureSchema: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, schema)
		return err
	})
}

func (p *Pg) Append(ctx context.Context, trade *models.Trade) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Append: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctxTx, `
			INSERT INTO trades (
				open_time, strategy, epic, direction, size,
				requested_px, entry_price, stop_level, profit_level,
				deal_reference, deal_id, status,
				entry_conditions, trend_at_entry, atr_at_entry
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			RETURNING id`,
			trade.OpenTime, trade.Strategy, trade.Epic, string(trade.Direction), trade.Size,
			trade.RequestedPx, trade.EntryPrice, trade.StopLevel, trade.ProfitLevel,
			trade.DealReference, trade.DealID, string(trade.Status),
			trade.EntryConditions, string(trade.TrendAtEntry), trade.ATRAtEntry,
		).Scan(&trade.ID)
	})
}

const tradeColumns = `
	id, open_time, strategy, epic, direction, size,
	requested_px, entry_price, stop_level, profit_level,
	deal_reference, deal_id, status,
	profit_loss, COALESCE(close_time, 'epoch'::timestamptz), close_price, exit_reason,
	entry_conditions, exit_conditions, trend_at_entry, atr_at_entry`

func scanTrade(row pgx.Row) (models.Trade, error) {
	var t models.Trade
	var direction, status, exitReason, trend string
	err := row.Scan(
		&t.ID, &t.OpenTime, &t.Strategy, &t.Epic, &direction, &t.Size,
		&t.RequestedPx, &t.EntryPrice, &t.StopLevel, &t.ProfitLevel,
		&t.DealReference, &t.DealID, &status,
		&t.ProfitLoss, &t.CloseTime, &t.ClosePrice, &exitReason,
		&t.EntryConditions, &t.ExitConditions, &trend, &t.ATRAtEntry,
	)
	if err != nil {
		return models.Trade{}, err
	}
	t.Direction = models.Side(direction)
	t.Status = models.TradeStatus(status)
	t.ExitReason = models.ExitReason(exitReason)
	t.TrendAtEntry = models.Trend(trend)
	return t, nil
}

func (p *Pg) queryTrades(ctx context.Context, sql string, args ...any) ([]models.Trade, error) {
	rows, err := p.db.Conn().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Pg) OpenTrades(ctx context.Context) (trades []models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.OpenTrades: %w", err)
		}
	}()
	return p.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE status IN ('OPENING','OPEN')
		ORDER BY open_time`)
}

func (p *Pg) History(ctx context.Context, limit int) (trades []models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.History: %w", err)
		}
	}()
	if limit <= 0 {
		return p.queryTrades(ctx, `
			SELECT `+tradeColumns+`
			FROM trades
			ORDER BY open_time DESC`)
	}
	return p.queryTrades(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		ORDER BY open_time DESC
		LIMIT $1`, limit)
}

func (p *Pg) MarkClosed(ctx context.Context, dealID string, info CloseInfo) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.MarkClosed: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctxTx, `
			UPDATE trades SET
				status = 'CLOSED',
				close_time = $2,
				close_price = $3,
				profit_loss = $4,
				exit_reason = $5,
				exit_conditions = $6
			WHERE deal_id = $1 AND status <> 'CLOSED'`,
			dealID, info.CloseTime, info.ClosePrice, info.ProfitLoss,
			string(info.ExitReason), info.ExitConditions,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("no open trade with deal_id %s", dealID)
		}
		return nil
	})
}

func (p *Pg) UpdateProtection(ctx context.Context, dealID string, stop, profit float64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.UpdateProtection: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			UPDATE trades SET stop_level = $2, profit_level = $3
			WHERE deal_id = $1`,
			dealID, stop, profit,
		)
		return err
	})
}
