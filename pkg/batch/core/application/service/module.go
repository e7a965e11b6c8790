package service

import (
	"go.uber.org/fx"
)

// Module exports the application services for dependency injection.
var Module = fx.Options(
	fx.Provide(
		NewBatchStateService,
		NewJobSchedulingService,
		NewPartialRetryService,
		NewComicService,
	),
)
