package binance

import (
	"context"

	"capital_bot/internal/modules/binance/service"
	"capital_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("binance",
		fx.Provide(
			service.NewClient,
			service.NewFeeder,
		),
		fx.Invoke(func(lc fx.Lifecycle, f *service.Feeder, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					// прогрев — блокирующий, без истории движку нечего делать
					if err := f.Warmup(startCtx); err != nil {
						logger.Error("[FEED] warmup: %v", err)
						return err
					}
					go f.Run(ctx)
					return nil
				},
			})
		}),
	)
}
