package telegram

import (
	"context"

	"capital_bot/internal/engine"
	"capital_bot/internal/modules/telegram_bot/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			service.NewTelegram,
			// движок получает нотификатор без обратной зависимости,
			// сам движок подвязываем к командам в Invoke ниже
			func(t *service.Telegram) engine.Notifier {
				return t
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram, e *engine.Engine) {
				t.SetEngine(e)

				pollCtx, cancel := context.WithCancel(context.Background())
				done := make(chan struct{})

				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							defer close(done)
							t.Start(pollCtx)
						}()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						cancel()
						select {
						case <-done:
						case <-ctx.Done():
						}
						return nil
					},
				})
			},
		),
	)
}
