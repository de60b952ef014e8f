package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"capital_bot/internal/ledger"
	"capital_bot/internal/models"
	advisorsvc "capital_bot/internal/modules/advisor/service"
	"capital_bot/internal/modules/config"
	stratsvc "capital_bot/internal/modules/strategy/service"
	"capital_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
)

func init() {
	_ = logger.Init("error")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.PollInterval = 20 * time.Millisecond
	cfg.Cooldown = 5 * time.Minute
	cfg.ReconcileInterval = 20 * time.Millisecond
	cfg.ConfirmPoll = 2 * time.Millisecond
	cfg.ConfirmTimeout = 60 * time.Millisecond
	cfg.AdvisoryWait = 20 * time.Millisecond
	cfg.HistoryLookback = 24 * time.Hour
	cfg.ExitTolerance = 0.01
	cfg.OrderSize = 0.0015
	cfg.PreventCounterTrend = true
	cfg.TrendTimeframe = "30m"
	cfg.TrendEMAPeriod = 30
	return cfg
}

type view struct {
	series map[models.Timeframe][]models.Candle
}

func (v view) View(tf models.Timeframe, limit int) []models.Candle {
	cs := v.series[tf]
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	out := make([]models.Candle, len(cs))
	copy(out, cs)
	return out
}

func neutralView() view { return view{} }

// нисходящий 30m ряд: close ниже EMA, тренд bearish
func bearishView() view {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cs := make([]models.Candle, 60)
	for i := range cs {
		px := 130.0 - float64(i)
		cs[i] = models.Candle{
			OpenTime: base.Add(time.Duration(i) * 30 * time.Minute),
			Open:     px, High: px + 0.5, Low: px - 0.5, Close: px, Volume: 1,
		}
	}
	return view{series: map[models.Timeframe][]models.Candle{models.TF30m: cs}}
}

type fixedStrategy struct {
	name string
	sig  models.Signal
}

func (s *fixedStrategy) Name() string                      { return s.name }
func (s *fixedStrategy) Evaluate(stratsvc.MarketView) models.Signal {
	sig := s.sig
	if sig.Attrs != nil {
		attrs := make(map[string]any, len(sig.Attrs))
		for k, v := range sig.Attrs {
			attrs[k] = v
		}
		sig.Attrs = attrs
	}
	return sig
}
func (s *fixedStrategy) Reconfigure(int)                   {}
func (s *fixedStrategy) RiskFallback() (float64, float64)  { return 1.5, 1.0 }

type placedOrder struct {
	epic   string
	side   models.Side
	size   float64
	stop   float64
	profit float64
}

type amendCall struct {
	dealID string
	stop   float64
	profit float64
}

type fakeBroker struct {
	mu sync.Mutex

	bid, offer float64
	fill       float64

	placeErr       error
	confirmPending bool
	amendErr       error

	placed    []placedOrder
	amends    []amendCall
	closed    []string
	positions []models.OpenPosition
	txs       []models.Transaction

	nextRef   int
	refToDeal map[string]string
}

func newFakeBroker(bid, offer, fill float64) *fakeBroker {
	return &fakeBroker{
		bid: bid, offer: offer, fill: fill,
		refToDeal: make(map[string]string),
	}
}

func (b *fakeBroker) GetMarketSnapshot(context.Context, string) (models.MarketSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.MarketSnapshot{Bid: b.bid, Offer: b.offer}, nil
}

func (b *fakeBroker) PlaceMarketOrder(_ context.Context, epic string, direction models.Side, size, stop, profit float64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.placeErr != nil {
		return "", b.placeErr
	}
	b.nextRef++
	ref := fmt.Sprintf("ref-%d", b.nextRef)
	b.refToDeal[ref] = fmt.Sprintf("deal-%d", b.nextRef)
	b.placed = append(b.placed, placedOrder{epic, direction, size, stop, profit})
	return ref, nil
}

func (b *fakeBroker) GetOrderConfirmation(_ context.Context, ref string) (models.OrderConfirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.confirmPending {
		return models.OrderConfirmation{DealReference: ref, Status: "PENDING"}, nil
	}
	return models.OrderConfirmation{
		DealReference: ref,
		Status:        "OPEN",
		Level:         b.fill,
		DealID:        b.refToDeal[ref],
	}, nil
}

func (b *fakeBroker) AmendPosition(_ context.Context, dealID string, stop, profit float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.amendErr != nil {
		return b.amendErr
	}
	b.amends = append(b.amends, amendCall{dealID, stop, profit})
	return nil
}

func (b *fakeBroker) ClosePosition(_ context.Context, dealID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = append(b.closed, dealID)
	return nil
}

func (b *fakeBroker) GetOpenPositions(context.Context) ([]models.OpenPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.OpenPosition, len(b.positions))
	copy(out, b.positions)
	return out, nil
}

func (b *fakeBroker) GetTransactionHistory(context.Context, time.Time) ([]models.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Transaction, len(b.txs))
	copy(out, b.txs)
	return out, nil
}

func (b *fakeBroker) placedOrders() []placedOrder {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]placedOrder, len(b.placed))
	copy(out, b.placed)
	return out
}

func (b *fakeBroker) amendCalls() []amendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]amendCall, len(b.amends))
	copy(out, b.amends)
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Send(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *fakeNotifier) Sendf(format string, args ...any) { n.Send(fmt.Sprintf(format, args...)) }

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	copy(out, n.msgs)
	return out
}

func newTestEngine(cfg *config.Config, v view, strat stratsvc.Strategy, b *fakeBroker) (*Engine, *ledger.Memory, *fakeNotifier) {
	reg := stratsvc.NewRegistry()
	if strat != nil {
		reg.Register(strat)
	}
	mem := ledger.NewMemory()
	n := &fakeNotifier{}
	e := New(cfg, v, reg, b, nil, mem, n)
	e.SetEpic("BTC-EPIC")
	return e, mem, n
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestExecuteAmendsOffRealFill(t *testing.T) {
	cfg := testConfig()
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	e, mem, _ := newTestEngine(cfg, neutralView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	placed := broker.placedOrders()
	if len(placed) != 1 {
		t.Fatalf("placed = %d, want 1", len(placed))
	}
	// предварительные уровни от mid 50000
	if !approx(placed[0].stop, 50000*(1-0.004)) || !approx(placed[0].profit, 50000*(1+0.008)) {
		t.Errorf("preliminary levels = %v/%v", placed[0].stop, placed[0].profit)
	}
	if placed[0].size != cfg.OrderSize {
		t.Errorf("size = %v, want %v", placed[0].size, cfg.OrderSize)
	}

	// точные уровни от реального филла 50010
	amends := broker.amendCalls()
	if len(amends) != 1 {
		t.Fatalf("amends = %d, want 1", len(amends))
	}
	if !approx(amends[0].stop, 50010*(1-0.004)) {
		t.Errorf("amended stop = %v, want %v", amends[0].stop, 50010*(1-0.004))
	}
	if !approx(amends[0].profit, 50010*(1+0.008)) {
		t.Errorf("amended profit = %v, want %v", amends[0].profit, 50010*(1+0.008))
	}

	open, _ := mem.OpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("ledger open = %d, want 1", len(open))
	}
	tr := open[0]
	if tr.EntryPrice != 50010 || tr.RequestedPx != 50000 || tr.Status != models.TradeOpen {
		t.Errorf("trade = %+v", tr)
	}
	if tr.DealID == "" || tr.DealReference == "" {
		t.Error("deal ids not recorded")
	}

	if e.InFlight("s1") {
		t.Error("in-flight guard not released")
	}
	if reason := e.skipReason("s1", time.Now()); reason != "open trade" {
		t.Errorf("skip reason = %q, want open trade", reason)
	}
}

func TestConfirmationTimeoutReleasesGuard(t *testing.T) {
	cfg := testConfig()
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	broker.confirmPending = true
	e, mem, n := newTestEngine(cfg, neutralView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	if got := len(broker.amendCalls()); got != 0 {
		t.Errorf("amends = %d, want 0", got)
	}
	open, _ := mem.OpenTrades(ctx)
	if len(open) != 0 {
		t.Errorf("ledger open = %d, want 0 after timeout", len(open))
	}
	if e.InFlight("s1") {
		t.Error("in-flight guard not released after timeout")
	}

	var surfaced bool
	for _, m := range n.messages() {
		if strings.Contains(m, "не подтвердился") {
			surfaced = true
		}
	}
	if !surfaced {
		t.Error("timeout not surfaced to operator")
	}
}

func TestGuardReleasedAcrossRandomFailures(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		cfg := testConfig()
		cfg.ConfirmTimeout = 10 * time.Millisecond
		cfg.ConfirmPoll = time.Millisecond

		strat := &fixedStrategy{name: "s1", sig: models.Signal{
			Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
		}}
		broker := newFakeBroker(49990, 50010, 50010)
		switch rng.Intn(4) {
		case 1:
			broker.placeErr = fmt.Errorf("rejected")
		case 2:
			broker.confirmPending = true
		case 3:
			broker.amendErr = fmt.Errorf("amend failed")
		}
		e, _, _ := newTestEngine(cfg, neutralView(), strat, broker)

		e.tick(ctx)
		e.wg.Wait()

		if e.InFlight("s1") {
			t.Fatalf("attempt %d: in-flight guard stuck", i)
		}
	}
}

func TestAmendFailureStillRecordsOpenTrade(t *testing.T) {
	cfg := testConfig()
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	broker.amendErr = fmt.Errorf("amend failed")
	e, mem, n := newTestEngine(cfg, neutralView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	open, _ := mem.OpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("ledger open = %d, want 1 despite amend failure", len(open))
	}

	var warned bool
	for _, m := range n.messages() {
		if strings.Contains(m, "вручную") {
			warned = true
		}
	}
	if !warned {
		t.Error("amend failure did not demand manual intervention")
	}
}

func TestCounterTrendSuppression(t *testing.T) {
	cfg := testConfig()
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	e, _, _ := newTestEngine(cfg, bearishView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	if got := len(broker.placedOrders()); got != 0 {
		t.Fatalf("placed = %d, want 0", got)
	}
	sig := e.Signals()["s1"]
	if sig.Side != models.SideHold {
		t.Errorf("signal side = %s, want HOLD", sig.Side)
	}
	if !strings.Contains(sig.Message, "blocked") {
		t.Errorf("message %q has no block reason", sig.Message)
	}
	if e.Trend() != models.TrendBearish {
		t.Errorf("trend = %s, want bearish", e.Trend())
	}
}

func TestRiskRejectedWithoutDistances(t *testing.T) {
	cfg := testConfig()
	// ни уровней, ни ATR: fallback не может дать дистанции
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go",
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	e, mem, _ := newTestEngine(cfg, neutralView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	if got := len(broker.placedOrders()); got != 0 {
		t.Fatalf("placed = %d, want 0", got)
	}
	open, _ := mem.OpenTrades(ctx)
	if len(open) != 0 {
		t.Error("trade recorded without positive distances")
	}
	if sig := e.Signals()["s1"]; sig.Side != models.SideError {
		t.Errorf("signal side = %s, want ERROR", sig.Side)
	}
}

func TestRiskFallbackUsesStaticMultipliers(t *testing.T) {
	cfg := testConfig()
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go",
		Attrs: map[string]any{"atr": 100.0},
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	e, _, _ := newTestEngine(cfg, neutralView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	amends := broker.amendCalls()
	if len(amends) != 1 {
		t.Fatalf("amends = %d, want 1", len(amends))
	}
	// RiskFallback() = (1.5, 1.0), mid = 50000
	slPct := 1.5 * 100.0 / 50000
	tpPct := 1.0 * 100.0 / 50000
	if !approx(amends[0].stop, 50010*(1-slPct)) {
		t.Errorf("stop = %v, want %v", amends[0].stop, 50010*(1-slPct))
	}
	if !approx(amends[0].profit, 50010*(1+tpPct)) {
		t.Errorf("profit = %v, want %v", amends[0].profit, 50010*(1+tpPct))
	}
}

type fakeAdvisor struct {
	sl, tp float64
	err    error
}

func (a *fakeAdvisor) Enabled() bool           { return true }
func (a *fakeAdvisor) ManagesOpenTrades() bool { return false }
func (a *fakeAdvisor) SuggestRiskLevels(context.Context, advisorsvc.RiskQuery) (float64, float64, error) {
	return a.sl, a.tp, a.err
}
func (a *fakeAdvisor) AdviseOnOpenTrade(context.Context, advisorsvc.TradeReview) (advisorsvc.ManagementAdvice, error) {
	return advisorsvc.ManagementAdvice{Decision: advisorsvc.DecisionHold}, nil
}

func TestRiskResolutionPrefersAdvisor(t *testing.T) {
	cfg := testConfig()
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideSell, Message: "go",
		Attrs: map[string]any{"atr": 100.0},
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	reg := stratsvc.NewRegistry()
	reg.Register(strat)
	mem := ledger.NewMemory()
	e := New(cfg, neutralView(), reg, broker, &fakeAdvisor{sl: 2.0, tp: 0.5}, mem, &fakeNotifier{})
	e.SetEpic("BTC-EPIC")

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	amends := broker.amendCalls()
	if len(amends) != 1 {
		t.Fatalf("amends = %d, want 1", len(amends))
	}
	slPct := 2.0 * 100.0 / 50000
	tpPct := 0.5 * 100.0 / 50000
	// SELL: стоп выше входа, тейк ниже
	if !approx(amends[0].stop, 50010*(1+slPct)) {
		t.Errorf("stop = %v, want %v", amends[0].stop, 50010*(1+slPct))
	}
	if !approx(amends[0].profit, 50010*(1-tpPct)) {
		t.Errorf("profit = %v, want %v", amends[0].profit, 50010*(1-tpPct))
	}
}

func TestTPEqualsSLAgainstTrendSuppressesSecondTrade(t *testing.T) {
	cfg := testConfig()
	cfg.PreventCounterTrend = false
	cfg.TPEqualsSLAgainstTrend = true
	cfg.TwoTPTrades = true
	cfg.SecondTPReduction = 0.001

	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	e, _, _ := newTestEngine(cfg, bearishView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	// против тренда: TP поджат до SL и вторая сделка не открывается
	placed := broker.placedOrders()
	if len(placed) != 1 {
		t.Fatalf("placed = %d, want 1", len(placed))
	}
	amends := broker.amendCalls()
	if len(amends) != 1 {
		t.Fatalf("amends = %d, want 1", len(amends))
	}
	if !approx(amends[0].profit, 50010*(1+0.004)) {
		t.Errorf("profit = %v, want TP equal to SL distance %v", amends[0].profit, 50010*(1+0.004))
	}
}

func TestTwoTPTradesPlacesBothOrders(t *testing.T) {
	cfg := testConfig()
	cfg.TwoTPTrades = true
	cfg.SecondTPReduction = 0.001

	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	e, mem, _ := newTestEngine(cfg, neutralView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	amends := broker.amendCalls()
	if len(amends) != 2 {
		t.Fatalf("amends = %d, want 2", len(amends))
	}
	if !approx(amends[0].profit, 50010*(1+0.008)) {
		t.Errorf("first profit = %v", amends[0].profit)
	}
	if !approx(amends[1].profit, 50010*(1+0.007)) {
		t.Errorf("second profit = %v, want reduced target", amends[1].profit)
	}
	// общий стоп
	if !approx(amends[0].stop, amends[1].stop) {
		t.Errorf("stops differ: %v vs %v", amends[0].stop, amends[1].stop)
	}

	open, _ := mem.OpenTrades(ctx)
	if len(open) != 2 {
		t.Errorf("ledger open = %d, want 2", len(open))
	}
}

func TestReconcilerClosesAndClassifiesStopLoss(t *testing.T) {
	cfg := testConfig()
	broker := newFakeBroker(49990, 50010, 50010)
	e, mem, n := newTestEngine(cfg, neutralView(), nil, broker)
	ctx := context.Background()

	tr := &models.Trade{
		OpenTime:    time.Now().Add(-time.Hour),
		Strategy:    "s1",
		Epic:        "BTC-EPIC",
		Direction:   models.SideBuy,
		Size:        0.0015,
		EntryPrice:  50010,
		StopLevel:   49809.96,
		ProfitLevel: 50410.08,
		DealID:      "deal-1",
		Status:      models.TradeOpen,
	}
	if err := mem.Append(ctx, tr); err != nil {
		t.Fatal(err)
	}
	e.addOpenDeal("s1", "deal-1")

	// позиции у брокера пусты, в истории есть закрытие около стопа
	broker.txs = []models.Transaction{{
		DealID:   "deal-1",
		Note:     "Trade closed",
		Size:     "-3,00 USD",
		Currency: "USD",
		Price:    "49810,00",
		Date:     time.Now(),
	}}

	e.reconcile(ctx)

	hist, _ := mem.History(ctx, 0)
	if len(hist) != 1 {
		t.Fatalf("history = %d", len(hist))
	}
	got := hist[0]
	if got.Status != models.TradeClosed {
		t.Fatalf("status = %s, want CLOSED", got.Status)
	}
	if got.ExitReason != models.ExitStopLoss {
		t.Errorf("exit reason = %s, want Stop Loss", got.ExitReason)
	}
	if !approx(got.ProfitLoss, -3.0) {
		t.Errorf("pnl = %v, want -3", got.ProfitLoss)
	}
	if !approx(got.ClosePrice, 49810.0) {
		t.Errorf("close price = %v", got.ClosePrice)
	}

	// маркер открытой сделки снят, стратегия снова торгуема (кроме кулдауна)
	if reason := e.skipReason("s1", time.Now()); reason == "open trade" {
		t.Error("open-trade marker not cleared")
	}

	// повторная сверка — no-op
	before := len(n.messages())
	e.reconcile(ctx)
	if len(n.messages()) != before {
		t.Error("second reconcile produced new notifications")
	}
}

func TestReconcilerWaitsForCloseTransaction(t *testing.T) {
	cfg := testConfig()
	broker := newFakeBroker(49990, 50010, 50010)
	e, mem, _ := newTestEngine(cfg, neutralView(), nil, broker)
	ctx := context.Background()

	tr := &models.Trade{
		OpenTime:   time.Now(),
		Strategy:   "s1",
		Direction:  models.SideBuy,
		EntryPrice: 50010,
		DealID:     "deal-1",
		Status:     models.TradeOpen,
	}
	if err := mem.Append(ctx, tr); err != nil {
		t.Fatal(err)
	}

	// дил пропал из позиций, но транзакции закрытия ещё нет
	e.reconcile(ctx)

	open, _ := mem.OpenTrades(ctx)
	if len(open) != 1 {
		t.Fatalf("trade closed without transaction evidence, open = %d", len(open))
	}
}

func TestClassifyExit(t *testing.T) {
	cases := []struct {
		name                string
		close, stop, profit float64
		want                models.ExitReason
	}{
		{"at stop", 49810, 49809.96, 50410.08, models.ExitStopLoss},
		{"at target", 50410, 49809.96, 50410.08, models.ExitTakeProfit},
		{"nowhere near", 50100, 49809.96, 50410.08, models.ExitManual},
		{"no close price", 0, 49809.96, 50410.08, models.ExitManual},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyExit(tc.close, tc.stop, tc.profit, 0.01); got != tc.want {
				t.Errorf("classifyExit = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPauseStopsNewTicks(t *testing.T) {
	e, _, _ := newTestEngine(testConfig(), neutralView(), nil, newFakeBroker(1, 1, 1))
	e.Resume()
	if !e.Running() {
		t.Fatal("not running after resume")
	}
	e.Pause()
	if e.Running() {
		t.Fatal("running after pause")
	}
}

func TestCooldownAfterTrade(t *testing.T) {
	cfg := testConfig()
	strat := &fixedStrategy{name: "s1", sig: models.Signal{
		Side: models.SideBuy, Message: "go", SLPct: 0.004, TPPct: 0.008,
	}}
	broker := newFakeBroker(49990, 50010, 50010)
	e, _, _ := newTestEngine(cfg, neutralView(), strat, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.wg.Wait()

	// после закрытия маркера остаётся кулдаун
	e.removeOpenDeal("s1", broker.refToDeal["ref-1"])
	if reason := e.skipReason("s1", time.Now()); reason != "cooldown" {
		t.Errorf("skip reason = %q, want cooldown", reason)
	}
	if reason := e.skipReason("s1", time.Now().Add(cfg.Cooldown+time.Second)); reason != "" {
		t.Errorf("skip reason after cooldown = %q, want empty", reason)
	}
}

func TestTickAndReconcileFinishSpans(t *testing.T) {
	tracer := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(prev)

	broker := newFakeBroker(49990, 50010, 50010)
	e, _, _ := newTestEngine(testConfig(), neutralView(), nil, broker)

	ctx := context.Background()
	e.tick(ctx)
	e.reconcile(ctx)
	e.wg.Wait()

	names := map[string]bool{}
	for _, s := range tracer.FinishedSpans() {
		names[s.OperationName] = true
	}
	if !names["scheduler.tick"] {
		t.Error("tick did not report a scheduler.tick span")
	}
	if !names["reconciler.cycle"] {
		t.Error("reconcile did not report a reconciler.cycle span")
	}
}
