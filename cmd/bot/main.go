package main

import (
	"context"
	"log"

	"capital_bot/internal/engine"
	"capital_bot/internal/ledger"
	"capital_bot/internal/modules/advisor"
	"capital_bot/internal/modules/binance"
	"capital_bot/internal/modules/capital"
	"capital_bot/internal/modules/config"
	"capital_bot/internal/modules/health"
	"capital_bot/internal/modules/klines"
	"capital_bot/internal/modules/postgres"
	"capital_bot/internal/modules/strategy"
	telegram "capital_bot/internal/modules/telegram_bot"
	"capital_bot/pkg/logger"
	"capital_bot/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "capital_bot"

func main() {
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if err := logger.Init(cfg.LogLevel); err != nil {
				return err
			}
			if cfg.Jaeger.Host == "" {
				return nil
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				return err
			}
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
		postgres.Module(),
		ledger.Module(),
		health.Module(),
		klines.Module(),
		binance.Module(),
		capital.Module(),
		strategy.Module(),
		advisor.Module(),
		telegram.Module(),
		engine.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
