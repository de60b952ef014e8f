package ledger

import (
	"context"

	"go.uber.org/fx"

	"capital_bot/pkg/db"
)

func Module() fx.Option {
	return fx.Module("ledger",
		fx.Provide(
			func(txm db.TxManager) Ledger {
				return NewPg(txm)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, l Ledger) {
			pg, ok := l.(*Pg)
			if !ok {
				return
			}
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return pg.EnsureSchema(ctx)
				},
			})
		}),
	)
}
