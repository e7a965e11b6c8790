// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
package sqlite

import (
	"errors"

	dbconfig "github.com/tigerroll/comical/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/comical/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/comical/pkg/batch/adapter/database"
	"github.com/tigerroll/comical/pkg/batch/core/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// init registers the SQLite dialector factory with the GORM adapter.
func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		p := &SQLiteDBProvider{BaseProvider: &gormadapter.BaseProvider{}}
		connStr := p.ConnectionString(cfg)
		return sqlite.Open(connStr), nil
	})
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString generates the DSN (Data Source Name) for SQLite connections.
func (p *SQLiteDBProvider) ConnectionString(c dbconfig.DatabaseConfig) string {
	// GORM's SQLite dialector expects the file path directly.
	return c.Database
}

// NewProvider creates a new database.DBProvider for SQLite.
// This function is intended to be used with fx.Provide.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}
