package advisor

import (
	"capital_bot/internal/modules/advisor/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("advisor",
		fx.Provide(service.NewAdvisor),
	)
}
