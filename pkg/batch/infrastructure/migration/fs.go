package migration

import (
	"embed"
	"io/fs"

	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

//go:embed resource
var rawMigrationFS embed.FS

// MigrationsPath is the directory inside the embedded filesystem that holds
// the versioned SQL files.
const MigrationsPath = "migrations"

// ProvideMigrationsFS embeds the schema migration files and returns them as fs.FS.
func ProvideMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "resource")
	if err != nil {
		// This should not happen if 'resource' exists.
		logger.Fatalf("Failed to create subdirectory for migration FS: %v", err)
	}
	return subFS
}
