package bootstrap

import (
	"context"

	"go.uber.org/fx"
)

// Module migrates the schema and seeds the bootstrap business once the DB is up.
var Module = fx.Module("bootstrap",
	fx.Provide(NewService),
	fx.Invoke(runBootstrap),
)

func runBootstrap(lc fx.Lifecycle, b *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.Run(ctx)
		},
	})
}
