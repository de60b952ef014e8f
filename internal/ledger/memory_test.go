package ledger

import (
	"context"
	"testing"
	"time"

	"capital_bot/internal/models"
)

func openTrade(deal string, openedAt time.Time) *models.Trade {
	return &models.Trade{
		OpenTime:    openedAt,
		Strategy:    "scalping_ema_rsi",
		Epic:        "BTCUSD",
		Direction:   models.SideBuy,
		Size:        0.0015,
		RequestedPx: 50000,
		EntryPrice:  50010,
		StopLevel:   49810.04,
		ProfitLevel: 50410.08,
		DealID:      deal,
		Status:      models.TradeOpen,
	}
}

func TestMemoryAppendAssignsIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	a := openTrade("d1", now)
	b := openTrade("d2", now.Add(time.Minute))
	if err := m.Append(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := m.Append(ctx, b); err != nil {
		t.Fatal(err)
	}
	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Fatalf("ids not assigned: %d, %d", a.ID, b.ID)
	}
}

func TestMemoryMarkClosed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	if err := m.Append(ctx, openTrade("d1", now)); err != nil {
		t.Fatal(err)
	}

	info := CloseInfo{
		CloseTime:  now.Add(time.Hour),
		ClosePrice: 50410.0,
		ProfitLoss: 0.6,
		ExitReason: models.ExitTakeProfit,
	}
	if err := m.MarkClosed(ctx, "d1", info); err != nil {
		t.Fatal(err)
	}

	open, err := m.OpenTrades(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Fatalf("open = %d, want 0", len(open))
	}

	hist, err := m.History(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 {
		t.Fatalf("history = %d, want 1", len(hist))
	}
	got := hist[0]
	if got.Status != models.TradeClosed || got.ExitReason != models.ExitTakeProfit || got.ProfitLoss != 0.6 {
		t.Errorf("closed row = %+v", got)
	}

	// повторное закрытие того же дила — ошибка, строка не трогается
	if err := m.MarkClosed(ctx, "d1", info); err == nil {
		t.Error("second MarkClosed succeeded")
	}
}

func TestMemoryHistoryOrderAndLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tr := openTrade("d", base.Add(time.Duration(i)*time.Minute))
		tr.DealID = tr.DealID + string(rune('0'+i))
		if err := m.Append(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	hist, err := m.History(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 {
		t.Fatalf("history = %d, want 3", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].OpenTime.After(hist[i-1].OpenTime) {
			t.Fatal("history not sorted newest first")
		}
	}
	if hist[0].DealID != "d4" {
		t.Errorf("newest = %s, want d4", hist[0].DealID)
	}
}

func TestMemoryUpdateProtection(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Append(ctx, openTrade("d1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateProtection(ctx, "d1", 49900, 50500); err != nil {
		t.Fatal(err)
	}

	open, _ := m.OpenTrades(ctx)
	if open[0].StopLevel != 49900 || open[0].ProfitLevel != 50500 {
		t.Errorf("levels = %v/%v", open[0].StopLevel, open[0].ProfitLevel)
	}

	if err := m.UpdateProtection(ctx, "nope", 1, 2); err == nil {
		t.Error("unknown deal accepted")
	}
}
