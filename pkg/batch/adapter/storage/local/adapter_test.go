package local_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/tigerroll/comical/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/comical/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/comical/pkg/batch/adapter/storage/local"
)

func newAdapter(t *testing.T) storageAdapter.StorageConnection {
	t.Helper()
	cfg := storageConfig.StorageConfig{
		Type:    local.ProviderType,
		BaseDir: t.TempDir(),
	}
	adapter, err := local.NewLocalAdapter(cfg, "test")
	require.NoError(t, err)
	return adapter
}

func TestNewLocalAdapter_RequiresBaseDir(t *testing.T) {
	_, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: local.ProviderType}, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseDir")
}

func TestNewLocalAdapter_CreatesMissingBaseDir(t *testing.T) {
	baseDir := filepath.Join(t.TempDir(), "nested", "storage")
	_, err := local.NewLocalAdapter(storageConfig.StorageConfig{BaseDir: baseDir}, "test")
	require.NoError(t, err)

	info, err := os.Stat(baseDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()

	payload := "cover image bytes"
	err := adapter.Upload(ctx, "images", "dt=2026-09-01/9784000000001.jpg", strings.NewReader(payload), "image/jpeg")
	require.NoError(t, err)

	rc, err := adapter.Download(ctx, "images", "dt=2026-09-01/9784000000001.jpg")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestDownload_MissingObject(t *testing.T) {
	adapter := newAdapter(t)

	_, err := adapter.Download(context.Background(), "images", "does-not-exist.jpg")
	require.Error(t, err)
}

func TestListObjects_FiltersByPrefix(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()

	for _, name := range []string{
		"dt=2026-09-01/a.jpg",
		"dt=2026-09-01/b.jpg",
		"dt=2026-08-31/c.jpg",
	} {
		require.NoError(t, adapter.Upload(ctx, "images", name, strings.NewReader("x"), "image/jpeg"))
	}

	var listed []string
	err := adapter.ListObjects(ctx, "images", "dt=2026-09-01/", func(objectName string) error {
		listed = append(listed, objectName)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dt=2026-09-01/a.jpg", "dt=2026-09-01/b.jpg"}, listed)
}

func TestExistsWithPrefix(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Upload(ctx, "images", "dt=2026-09-01/a.jpg", strings.NewReader("x"), "image/jpeg"))

	found, err := adapter.ExistsWithPrefix(ctx, "images", "dt=2026-09-01/")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = adapter.ExistsWithPrefix(ctx, "images", "dt=2026-09-02/")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteObject(t *testing.T) {
	adapter := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.Upload(ctx, "images", "a.jpg", strings.NewReader("x"), "image/jpeg"))
	require.NoError(t, adapter.DeleteObject(ctx, "images", "a.jpg"))

	_, err := adapter.Download(ctx, "images", "a.jpg")
	require.Error(t, err)

	// Deleting an object that is already gone is not an error.
	require.NoError(t, adapter.DeleteObject(ctx, "images", "a.jpg"))
}

func TestUpload_RejectsPathEscape(t *testing.T) {
	adapter := newAdapter(t)

	err := adapter.Upload(context.Background(), "", "../../etc/passwd", strings.NewReader("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside of BaseDir")
}
