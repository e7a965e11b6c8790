package migration

import (
	"context"

	"go.uber.org/fx"

	// Blank imports for golang-migrate database drivers to ensure they are registered.
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"

	"github.com/tigerroll/comical/pkg/batch/adapter/database"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
)

// Module wires the schema migrator into the application lifecycle. Pending
// migrations run against the batch state database on startup.
var Module = fx.Options(
	fx.Invoke(func(lc fx.Lifecycle, dbResolver database.DBConnectionResolver, cfg *config.Config) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				conn, err := dbResolver.ResolveDBConnection(ctx, cfg.Comical.Infrastructure.BatchStateDBRef)
				if err != nil {
					return err
				}
				return NewMigrator(conn).Up(ctx, ProvideMigrationsFS(), MigrationsPath)
			},
		})
	}),
)
