package capital

import (
	"context"

	"capital_bot/internal/modules/capital/service"
	"capital_bot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("capital",
		fx.Provide(
			service.NewClient,
		),
		// логин и выбор счёта — до старта движка
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := c.Authenticate(ctx); err != nil {
						return err
					}
					return c.SelectAccount(ctx, cfg.Capital.AccountName)
				},
			})
		}),
	)
}
