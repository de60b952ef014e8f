package strategy

import (
	"capital_bot/internal/modules/config"
	"capital_bot/internal/modules/strategy/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config) *service.Registry {
				r := service.NewRegistry()
				r.Register(service.NewScalpingEMARSI(cfg.AggressivenessLevel))
				r.Register(service.NewLateralReversal(cfg.AggressivenessLevel))
				return r
			},
		),
	)
}
