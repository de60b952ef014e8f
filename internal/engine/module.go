package engine

import (
	"context"

	"go.uber.org/fx"

	"capital_bot/internal/ledger"
	"capital_bot/internal/modules/advisor/service"
	capitalsvc "capital_bot/internal/modules/capital/service"
	"capital_bot/internal/modules/config"
	healthsvc "capital_bot/internal/modules/health/service"
	"capital_bot/internal/modules/klines"
	stratsvc "capital_bot/internal/modules/strategy/service"
	"capital_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			func(
				cfg *config.Config,
				buf *klines.Buffer,
				reg *stratsvc.Registry,
				broker *capitalsvc.Client,
				advisor *service.Advisor,
				lg ledger.Ledger,
				notify Notifier,
			) *Engine {
				return New(cfg, buf, reg, broker, advisor, lg, notify)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, e *Engine, broker *capitalsvc.Client, state *healthsvc.State) {
			runCtx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			e.SetPulse(state)
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					epic, err := broker.FindEpic(ctx, cfg.Capital.InstrumentName)
					if err != nil {
						return err
					}
					e.SetEpic(epic)
					state.SetReady(true)
					logger.Info("trading %s (epic %s)", cfg.Capital.InstrumentName, epic)

					go func() {
						defer close(done)
						e.Run(runCtx)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					state.SetReady(false)
					cancel()
					select {
					case <-done:
					case <-ctx.Done():
					}
					return nil
				},
			})
		}),
	)
}
