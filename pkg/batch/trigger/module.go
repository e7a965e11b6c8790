package trigger

import (
	"context"

	"go.uber.org/fx"
)

// Module wires the trigger service and HTTP server into the application.
var Module = fx.Options(
	fx.Provide(
		NewTriggerService,
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				s.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return s.Stop(ctx)
			},
		})
	}),
)
