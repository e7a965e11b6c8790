// Package database defines the common interfaces for database adapters.
// Concrete GORM-backed implementations live in the gorm subpackage and its
// per-dialect subpackages.
package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/comical/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/comical/pkg/batch/core/adapter"
)

// DBConnection represents an abstraction of a database connection.
// It embeds coreAdapter.ResourceConnection for generic connection management.
type DBConnection interface {
	coreAdapter.ResourceConnection // Embeds Type(), Name(), Close()

	// GetGormDB returns the underlying *gorm.DB instance for typed queries.
	GetGormDB() *gorm.DB
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
	// RefreshConnection verifies the connection is alive, re-pinging the pool.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
}

// DBProvider is an interface responsible for providing database connections based on configuration.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "postgres").
	Type() string
	// ForceReconnect forces the closure and re-establishment of an existing connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
}

// DBConnectionResolver resolves a logical connection name to a live DBConnection,
// dispatching to the DBProvider that matches the configured database type.
type DBConnectionResolver interface {
	// ResolveDBConnection resolves a database connection with the specified name.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
	// CloseAll closes all connections held by the underlying providers.
	CloseAll() error
}

// DBProviderGroup is an Fx tag used to group all DBProvider implementations.
const DBProviderGroup = "db_providers"
