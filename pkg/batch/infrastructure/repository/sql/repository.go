// Package sql provides GORM-backed implementations of the domain repositories.
package sql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/comical/pkg/batch/adapter/database"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
)

// resolveGormDB resolves the named connection and returns a context-bound *gorm.DB.
func resolveGormDB(ctx context.Context, resolver database.DBConnectionResolver, name string) (*gorm.DB, error) {
	conn, err := resolver.ResolveDBConnection(ctx, name)
	if err != nil {
		return nil, exception.NewBatchError("sql_repository", fmt.Sprintf("failed to resolve DB connection '%s'", name), err, false, true)
	}
	return conn.GetGormDB().WithContext(ctx), nil
}

// isTableNotExistError resolves the named connection and asks it whether err
// indicates a missing table (i.e. migrations have not run yet).
func isTableNotExistError(ctx context.Context, resolver database.DBConnectionResolver, name string, err error) bool {
	conn, resolveErr := resolver.ResolveDBConnection(ctx, name)
	if resolveErr != nil {
		return false
	}
	return conn.IsTableNotExistError(err)
}

// onConflictUpdateAll returns an upsert clause keyed on the given columns that
// updates all remaining columns on conflict.
func onConflictUpdateAll(columns ...string) clause.OnConflict {
	cols := make([]clause.Column, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, clause.Column{Name: c})
	}
	return clause.OnConflict{
		Columns:   cols,
		UpdateAll: true,
	}
}
