package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
)

// Module exports the in-memory repositories for dependency injection. It is a
// drop-in replacement for the sql module in local and test wiring.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryBatchStateRepository,
			fx.As(new(repository.BatchStateRepository)),
		),
		fx.Annotate(
			NewInMemoryPageErrorRepository,
			fx.As(new(repository.PageErrorRepository)),
		),
		fx.Annotate(
			NewInMemoryComicRepository,
			fx.As(new(repository.ComicRepository)),
		),
	),
)
