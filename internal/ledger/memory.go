package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"capital_bot/internal/models"
)

// Memory — журнал в памяти, для тестов и запуска без БД.
// Семантика та же, что у Pg: append-only, копия на чтение.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	trades []models.Trade
}

func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

func (m *Memory) Append(_ context.Context, trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trade.ID = m.nextID
	m.nextID++
	m.trades = append(m.trades, *trade)
	return nil
}

func (m *Memory) OpenTrades(_ context.Context) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Trade
	for _, t := range m.trades {
		if t.Status != models.TradeClosed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) History(_ context.Context, limit int) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Trade, len(m.trades))
	copy(out, m.trades)
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.After(out[j].OpenTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkClosed(_ context.Context, dealID string, info CloseInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trades {
		t := &m.trades[i]
		if t.DealID == dealID && t.Status != models.TradeClosed {
			t.Status = models.TradeClosed
			t.CloseTime = info.CloseTime
			t.ClosePrice = info.ClosePrice
			t.ProfitLoss = info.ProfitLoss
			t.ExitReason = info.ExitReason
			t.ExitConditions = info.ExitConditions
			return nil
		}
	}
	return fmt.Errorf("memory.MarkClosed: no open trade with deal_id %s", dealID)
}

func (m *Memory) UpdateProtection(_ context.Context, dealID string, stop, profit float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trades {
		if m.trades[i].DealID == dealID {
			m.trades[i].StopLevel = stop
			m.trades[i].ProfitLevel = profit
			return nil
		}
	}
	return fmt.Errorf("memory.UpdateProtection: unknown deal_id %s", dealID)
}
