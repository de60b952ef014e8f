package models

import "time"

type TradeStatus string

const (
	TradeOpening TradeStatus = "OPENING"
	TradeOpen    TradeStatus = "OPEN"
	TradeClosed  TradeStatus = "CLOSED"
)

type ExitReason string

const (
	ExitStopLoss   ExitReason = "Stop Loss"
	ExitTakeProfit ExitReason = "Take Profit"
	ExitManual     ExitReason = "Manual/Other"
)

// Trade — строка в журнале сделок. Создаётся пайплайном исполнения,
// закрывается реконсайлером; никогда не удаляется.
type Trade struct {
	ID            int64
	OpenTime      time.Time
	Strategy      string
	Epic          string
	Direction     Side
	Size          float64
	RequestedPx   float64
	EntryPrice    float64
	StopLevel     float64
	ProfitLevel   float64
	DealReference string
	DealID        string
	Status        TradeStatus

	ProfitLoss float64
	CloseTime  time.Time
	ClosePrice float64
	ExitReason ExitReason

	// снапшоты условий на входе/выходе (JSON)
	EntryConditions string
	ExitConditions  string

	TrendAtEntry Trend
	ATRAtEntry   float64
}
