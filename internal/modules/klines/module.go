package klines

import (
	"capital_bot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("klines",
		fx.Provide(
			func(cfg *config.Config) *Buffer {
				return NewBuffer(cfg.BufferLimit)
			},
		),
	)
}
