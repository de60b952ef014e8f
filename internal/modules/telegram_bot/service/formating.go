package service

import (
	"context"
	"fmt"
	"strings"

	"capital_bot/internal/models"
	stratsvc "capital_bot/internal/modules/strategy/service"
)

// enginer — срез движка, который нужен командам. Сужен до интерфейса,
// чтобы форматтеры тестировались без брокера и базы.
type enginer interface {
	Running() bool
	Pause()
	Resume()
	Trend() models.Trend
	Signals() map[string]models.Signal
	OrderSize() float64
	SetOrderSize(size float64)
	Aggressiveness() int
	SetAggressiveness(level int)
	Registry() *stratsvc.Registry
	History(ctx context.Context, limit int) ([]models.Trade, error)
	CloseStrategyTrades(ctx context.Context, strategy string) (int, error)
}

func formatStrategyList(e enginer) string {
	names := e.Registry().Names()
	if len(names) == 0 {
		return "📭 Стратегии не зарегистрированы"
	}

	signals := e.Signals()

	var b strings.Builder
	b.WriteString("📋 Стратегии:\n")
	for i, name := range names {
		state := "▶️"
		if !e.Registry().IsActive(name) {
			state = "⏸"
		}
		fmt.Fprintf(&b, "%d. %s %s", i+1, state, name)
		if sig, ok := signals[name]; ok {
			fmt.Fprintf(&b, " — %s: %s", sig.Side, sig.Message)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatus(e enginer) string {
	state := "▶️ работает"
	if !e.Running() {
		state = "⏸ на паузе"
	}
	return fmt.Sprintf("🩺 Движок: %s\nТренд: %s\nАгрессивность: %d\nРазмер ордера: %g",
		state, e.Trend(), e.Aggressiveness(), e.OrderSize())
}

func formatHistory(trades []models.Trade) string {
	if len(trades) == 0 {
		return "📭 Сделок в журнале нет"
	}

	var b strings.Builder
	b.WriteString("📜 Последние сделки:\n")
	for _, t := range trades {
		switch t.Status {
		case models.TradeClosed:
			fmt.Fprintf(&b, "%s %s %s @ %.2f → %.2f, %+.2f (%s)\n",
				pnlEmoji(t.ProfitLoss), t.Strategy, t.Direction, t.EntryPrice, t.ClosePrice, t.ProfitLoss, t.ExitReason)
		default:
			fmt.Fprintf(&b, "🟡 %s %s @ %.2f — открыта (%s)\n",
				t.Strategy, t.Direction, t.EntryPrice, t.DealID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatSummary — агрегат по закрытым сделкам: счёт, винрейт, суммарный PnL.
func formatSummary(trades []models.Trade) string {
	type agg struct {
		total, wins int
		pnl         float64
	}
	byStrategy := map[string]*agg{}
	var order []string

	for _, t := range trades {
		if t.Status != models.TradeClosed {
			continue
		}
		a, ok := byStrategy[t.Strategy]
		if !ok {
			a = &agg{}
			byStrategy[t.Strategy] = a
			order = append(order, t.Strategy)
		}
		a.total++
		a.pnl += t.ProfitLoss
		if t.ProfitLoss > 0 {
			a.wins++
		}
	}

	if len(order) == 0 {
		return "📭 Закрытых сделок ещё нет"
	}

	var b strings.Builder
	b.WriteString("📊 Сводка по стратегиям:\n")
	for _, name := range order {
		a := byStrategy[name]
		winRate := float64(a.wins) / float64(a.total) * 100
		fmt.Fprintf(&b, "%s %s: %d сделок, винрейт %.0f%%, PnL %+.2f\n",
			pnlEmoji(a.pnl), name, a.total, winRate, a.pnl)
	}
	return strings.TrimRight(b.String(), "\n")
}

func pnlEmoji(pnl float64) string {
	if pnl >= 0 {
		return "🟢"
	}
	return "🔴"
}
