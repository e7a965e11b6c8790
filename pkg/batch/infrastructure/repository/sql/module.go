package sql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/comical/pkg/batch/adapter/database"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
)

// Module exports the GORM-backed repositories for dependency injection. The
// connection name is taken from the infrastructure section of the configuration.
var Module = fx.Options(
	fx.Provide(
		func(dbResolver database.DBConnectionResolver, cfg *config.Config) repository.BatchStateRepository {
			return NewSQLBatchStateRepository(dbResolver, cfg.Comical.Infrastructure.BatchStateDBRef)
		},
		func(dbResolver database.DBConnectionResolver, cfg *config.Config) repository.PageErrorRepository {
			return NewSQLPageErrorRepository(dbResolver, cfg.Comical.Infrastructure.BatchStateDBRef)
		},
		func(dbResolver database.DBConnectionResolver, cfg *config.Config) repository.ComicRepository {
			return NewSQLComicRepository(dbResolver, cfg.Comical.Infrastructure.BatchStateDBRef)
		},
	),
)
