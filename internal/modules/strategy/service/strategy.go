package service

import (
	"capital_bot/internal/models"
)

// MarketView — срез закрытых свечей, который стратегия читает на каждом тике.
// limit<=0 означает весь буфер.
type MarketView interface {
	View(tf models.Timeframe, limit int) []models.Candle
}

// Strategy — один генератор сигналов. Реализации хранят своё состояние
// и параметры, движок их не интерпретирует.
type Strategy interface {
	Name() string

	// Evaluate читает view и возвращает сигнал. Нехватка данных это HOLD,
	// не ошибка. Паники ловит SafeEvaluate, не сам Evaluate.
	Evaluate(view MarketView) models.Signal

	// Reconfigure меняет уровень агрессивности (1..10) на живом инстансе.
	Reconfigure(aggressiveness int)

	// RiskFallback возвращает статические множители ATR (sl, tp) для
	// случая, когда сигнал пришёл без уровней и advisor не ответил.
	RiskFallback() (slMult, tpMult float64)
}
