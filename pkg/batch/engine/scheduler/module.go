package scheduler

import (
	"context"

	"go.uber.org/fx"
)

// Module wires the resume scheduler into the application lifecycle.
var Module = fx.Options(
	fx.Provide(NewResumeScheduler),
	fx.Invoke(func(lc fx.Lifecycle, s *ResumeScheduler) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				s.Start(ctx)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				s.Stop()
				return nil
			},
		})
	}),
)
