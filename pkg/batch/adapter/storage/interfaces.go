// Package storage defines the common interfaces for various storage adapters.
// These interfaces abstract object storage operations, allowing the batch worker
// to interact with different backends (e.g., GCS, local file system) through a
// unified API.
package storage

import (
	"context"
	"io"

	coreAdapter "github.com/tigerroll/comical/pkg/batch/core/adapter"
)

// StorageExecutor defines generic storage operations.
// It is embedded into StorageConnection to provide concrete storage functionalities.
type StorageExecutor interface {
	// Upload uploads data to the specified bucket and object name.
	// 'data' is the stream of data to upload. 'contentType' is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download downloads data from the specified bucket and object name.
	// It returns a ReadCloser which must be closed by the caller after use.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects lists objects within the specified bucket and prefix.
	// The 'fn' callback function is called for each object name found, allowing for
	// efficient processing of large numbers of objects without loading all into memory.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// ExistsWithPrefix reports whether at least one object with the given prefix
	// exists in the bucket. Used for idempotent presence checks.
	ExistsWithPrefix(ctx context.Context, bucket, prefix string) (bool, error)
	// DeleteObject deletes the specified object from the bucket.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection represents a generic data storage connection.
// It embeds coreAdapter.ResourceConnection and StorageExecutor to provide both
// resource connection capabilities and specific storage operations.
type StorageConnection interface {
	coreAdapter.ResourceConnection // Inherits Close(), Type(), Name()
	StorageExecutor
}

// StorageProvider manages the acquisition and lifecycle of data storage connections
// of one backend type.
type StorageProvider interface {
	// GetConnection retrieves a StorageConnection with the specified name.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the backend type handled by this provider (e.g., "local", "gcs").
	Type() string
}
