package klines

import (
	"sync"

	"capital_bot/internal/models"
	"capital_bot/pkg/logger"
)

// Buffer хранит закрытые свечи по таймфреймам. Столько, сколько разрешил
// limit — старые вылетают с начала (FIFO, данные append-only).
type Buffer struct {
	mu     sync.RWMutex
	limit  int
	series map[models.Timeframe][]models.Candle
}

func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = 2000
	}
	return &Buffer{
		limit:  limit,
		series: make(map[models.Timeframe][]models.Candle),
	}
}

// Ingest добавляет закрытую свечу из стрима. Принимаем только свечи новее
// последней; свеча с тем же open_time перезаписывает последнюю (стрим
// побеждает бэкфилл за самый свежий бакет). Всё остальное — дубль или
// out-of-order, отбрасываем без ошибки.
func (b *Buffer) Ingest(tf models.Timeframe, c models.Candle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.series[tf]
	if n := len(s); n > 0 {
		last := s[n-1].OpenTime
		if c.OpenTime.Before(last) {
			logger.Debug("[KLINES] %s drop out-of-order candle %s (last %s)",
				tf, c.OpenTime.Format("15:04:05"), last.Format("15:04:05"))
			return false
		}
		if c.OpenTime.Equal(last) {
			s[n-1] = c
			return true
		}
	}

	s = append(s, c)
	if len(s) > b.limit {
		s = s[len(s)-b.limit:]
	}
	b.series[tf] = s
	return true
}

// Backfill подсыпает историю через REST — на старте или после дыры в данных.
// Свечи не новее текущей головы буфера игнорируются. Возвращает число принятых.
func (b *Buffer) Backfill(tf models.Timeframe, candles []models.Candle) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.series[tf]
	accepted := 0
	for _, c := range candles {
		if n := len(s); n > 0 && !c.OpenTime.After(s[n-1].OpenTime) {
			continue
		}
		s = append(s, c)
		accepted++
	}
	if len(s) > b.limit {
		s = s[len(s)-b.limit:]
	}
	b.series[tf] = s
	return accepted
}

// View отдаёт копию последних limit свечей. Снапшот: стратегия никогда не
// видит буфер, меняющийся под ней.
func (b *Buffer) View(tf models.Timeframe, limit int) []models.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.series[tf]
	if limit <= 0 || limit > len(s) {
		limit = len(s)
	}
	out := make([]models.Candle, limit)
	copy(out, s[len(s)-limit:])
	return out
}

func (b *Buffer) Len(tf models.Timeframe) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.series[tf])
}
