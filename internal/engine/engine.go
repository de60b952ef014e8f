package engine

import (
	"context"
	"sync"
	"time"

	"capital_bot/internal/ledger"
	"capital_bot/internal/models"
	advisorsvc "capital_bot/internal/modules/advisor/service"
	"capital_bot/internal/modules/config"
	stratsvc "capital_bot/internal/modules/strategy/service"
	"capital_bot/pkg/logger"
)

// Broker — брокерские операции, нужные движку. Реализуется capital-клиентом.
type Broker interface {
	GetMarketSnapshot(ctx context.Context, epic string) (models.MarketSnapshot, error)
	PlaceMarketOrder(ctx context.Context, epic string, direction models.Side, size, stop, profit float64) (string, error)
	GetOrderConfirmation(ctx context.Context, dealReference string) (models.OrderConfirmation, error)
	AmendPosition(ctx context.Context, dealID string, stop, profit float64) error
	ClosePosition(ctx context.Context, dealID string) error
	GetOpenPositions(ctx context.Context) ([]models.OpenPosition, error)
	GetTransactionHistory(ctx context.Context, since time.Time) ([]models.Transaction, error)
}

// RiskAdvisor — внешний советник по уровням риска и ведению сделок.
type RiskAdvisor interface {
	Enabled() bool
	ManagesOpenTrades() bool
	SuggestRiskLevels(ctx context.Context, q advisorsvc.RiskQuery) (slMult, tpMult float64, err error)
	AdviseOnOpenTrade(ctx context.Context, tr advisorsvc.TradeReview) (advisorsvc.ManagementAdvice, error)
}

// Notifier — канал оповещений оператора.
type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Pulse получает отметку о каждом прогоне планировщика (health-пробы).
type Pulse interface {
	TouchEval(t time.Time)
}

// Engine связывает буфер свечей, стратегии, брокера, советника и журнал.
// Два долгоживущих цикла: планировщик стратегий и реконсайлер позиций.
type Engine struct {
	cfg     *config.Config
	buf     stratsvc.MarketView
	reg     *stratsvc.Registry
	broker  Broker
	advisor RiskAdvisor
	ledger  ledger.Ledger
	notify  Notifier

	epic string

	mu       sync.Mutex
	running  bool
	signals  map[string]models.Signal
	inFlight map[string]bool
	// strategy -> deal ids открытых сделок
	openDeals map[string][]string
	lastTrade map[string]time.Time
	trend     models.Trend

	orderSize           float64
	aggressiveness      int
	preventCounterTrend bool

	pulse Pulse

	wg sync.WaitGroup
}

func New(
	cfg *config.Config,
	buf stratsvc.MarketView,
	reg *stratsvc.Registry,
	broker Broker,
	advisor RiskAdvisor,
	lg ledger.Ledger,
	notify Notifier,
) *Engine {
	return &Engine{
		cfg:                 cfg,
		buf:                 buf,
		reg:                 reg,
		broker:              broker,
		advisor:             advisor,
		ledger:              lg,
		notify:              notify,
		signals:             make(map[string]models.Signal),
		inFlight:            make(map[string]bool),
		openDeals:           make(map[string][]string),
		lastTrade:           make(map[string]time.Time),
		trend:               models.TrendNeutral,
		orderSize:           cfg.OrderSize,
		aggressiveness:      cfg.AggressivenessLevel,
		preventCounterTrend: cfg.PreventCounterTrend,
	}
}

// SetEpic задаёт инструмент до запуска циклов.
func (e *Engine) SetEpic(epic string) { e.epic = epic }

// SetPulse подключает приёмник отметок планировщика. Необязателен.
func (e *Engine) SetPulse(p Pulse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pulse = p
}

func (e *Engine) touchPulse(t time.Time) {
	e.mu.Lock()
	p := e.pulse
	e.mu.Unlock()
	if p != nil {
		p.TouchEval(t)
	}
}

// Run поднимает оба цикла. Блокируется до отмены ctx.
// Задачи подтверждения ордеров доживают до своего терминального
// состояния, их ждём через WaitGroup.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	var loops sync.WaitGroup
	loops.Add(2)
	go func() {
		defer loops.Done()
		e.runScheduler(ctx)
	}()
	go func() {
		defer loops.Done()
		e.runReconciler(ctx)
	}()

	<-ctx.Done()
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	loops.Wait()
	e.wg.Wait()
	logger.Info("engine stopped")
}

// Running сообщает, крутятся ли циклы по флагу (не по контексту).
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Pause останавливает открытие новых сделок без остановки процессов.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	logger.Info("engine paused")
}

// Resume снова разрешает работу циклов.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	logger.Info("engine resumed")
}

func (e *Engine) setSignal(name string, sig models.Signal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signals[name] = sig
}

// Signals — снапшот карты сигналов для статусных потребителей.
func (e *Engine) Signals() map[string]models.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]models.Signal, len(e.signals))
	for k, v := range e.signals {
		out[k] = v
	}
	return out
}

// Trend — последний вычисленный старший тренд.
func (e *Engine) Trend() models.Trend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trend
}

func (e *Engine) setTrend(t models.Trend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trend = t
}

// skipReason объясняет, почему планировщик пропускает стратегию в этом тике.
func (e *Engine) skipReason(name string, now time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.openDeals[name]) > 0 {
		return "open trade"
	}
	if e.inFlight[name] {
		return "order in flight"
	}
	if last, ok := e.lastTrade[name]; ok && now.Sub(last) < e.cfg.Cooldown {
		return "cooldown"
	}
	return ""
}

func (e *Engine) setInFlight(name string, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight[name] = v
}

// InFlight нужен тестам и статусу.
func (e *Engine) InFlight(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[name]
}

func (e *Engine) addOpenDeal(name, dealID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.openDeals[name] = append(e.openDeals[name], dealID)
}

func (e *Engine) removeOpenDeal(name, dealID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	deals := e.openDeals[name]
	for i, d := range deals {
		if d == dealID {
			e.openDeals[name] = append(deals[:i], deals[i+1:]...)
			return
		}
	}
}

func (e *Engine) markTraded(name string, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTrade[name] = ts
}

// OrderSize возвращает текущий глобальный размер ордера.
func (e *Engine) OrderSize() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderSize
}

// SetOrderSize меняет размер ордера на лету.
func (e *Engine) SetOrderSize(size float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderSize = size
}

// Aggressiveness — текущий уровень 1..10.
func (e *Engine) Aggressiveness() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aggressiveness
}

// SetAggressiveness раздаёт новый уровень всем стратегиям.
func (e *Engine) SetAggressiveness(level int) {
	e.mu.Lock()
	e.aggressiveness = level
	e.mu.Unlock()
	e.reg.Reconfigure(level)
	logger.Info("aggressiveness level set to %d", level)
}

// Registry даёт управляющей поверхности доступ к паузам стратегий.
func (e *Engine) Registry() *stratsvc.Registry { return e.reg }

// Ledger открывает журнал для /history и /summary.
func (e *Engine) Ledger() ledger.Ledger { return e.ledger }
