package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tigerroll/comical/pkg/batch/adapter/catalog"
	"github.com/tigerroll/comical/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/comical/pkg/batch/adapter/storage/config"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// ComicService performs the per-page catalog work: registering catalog items
// and downloading their cover images into object storage.
type ComicService struct {
	catalog         catalog.Client
	comics          repository.ComicRepository
	storageResolver *storage.ConnectionResolver
	cfg             *config.Config
	httpClient      *http.Client
}

// NewComicService creates a new ComicService.
func NewComicService(
	catalogClient catalog.Client,
	comics repository.ComicRepository,
	storageResolver *storage.ConnectionResolver,
	cfg *config.Config,
) *ComicService {
	return &ComicService{
		catalog:         catalogClient,
		comics:          comics,
		storageResolver: storageResolver,
		cfg:             cfg,
		httpClient: &http.Client{
			Timeout: cfg.Comical.Batch.Catalog.Timeout(),
		},
	}
}

// GetPageCount asks the catalog for the total page count of the current query
// by fetching the first page.
func (s *ComicService) GetPageCount(ctx context.Context) (int, error) {
	const op = "ComicService.GetPageCount"
	result, err := s.catalog.FetchPage(ctx, 1)
	if err != nil {
		return 0, exception.NewBatchError(op, "failed to fetch first catalog page", err, false, true)
	}
	return result.PageCount, nil
}

// RegisterPage fetches one catalog page and upserts its items into the comic
// store. It returns the number of items registered.
func (s *ComicService) RegisterPage(ctx context.Context, page int) (int, error) {
	const op = "ComicService.RegisterPage"

	result, err := s.catalog.FetchPage(ctx, page)
	if err != nil {
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to fetch catalog page %d", page), err, false, true)
	}

	comics := make([]*model.Comic, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ISBN == "" {
			logger.Warnf("Skipping catalog item with empty ISBN on page %d (title: %s)", page, item.Title)
			continue
		}
		comics = append(comics, &model.Comic{
			ISBN:      item.ISBN,
			Title:     item.Title,
			Author:    item.Author,
			Publisher: item.Publisher,
			SalesDate: item.SalesDate,
			ImageURL:  item.ImageURL,
			Price:     item.Price,
		})
	}

	if err := s.comics.UpsertComics(ctx, comics); err != nil {
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to upsert %d comics from page %d", len(comics), page), err, false, true)
	}

	logger.Debugf("Registered %d comics from catalog page %d.", len(comics), page)
	return len(comics), nil
}

// DownloadPageImages fetches one catalog page and downloads the cover image of
// each item into object storage. Items without an ISBN or image URL are
// skipped, as are items whose image already exists in the bucket. It returns
// the number of images uploaded.
func (s *ComicService) DownloadPageImages(ctx context.Context, page int) (int, error) {
	const op = "ComicService.DownloadPageImages"

	result, err := s.catalog.FetchPage(ctx, page)
	if err != nil {
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to fetch catalog page %d", page), err, false, true)
	}

	conn, bucket, err := s.imageStorage()
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, item := range result.Items {
		if item.ISBN == "" || item.ImageURL == "" {
			logger.Debugf("Skipping image for item without ISBN or image URL on page %d (title: %s)", page, item.Title)
			continue
		}

		// An image stored under any extension counts as present.
		exists, err := conn.ExistsWithPrefix(ctx, bucket, item.ISBN+".")
		if err != nil {
			return uploaded, exception.NewBatchError(op, fmt.Sprintf("failed to check image presence for ISBN %s", item.ISBN), err, false, true)
		}
		if exists {
			continue
		}

		if err := s.downloadAndStore(ctx, conn, bucket, item.ISBN, item.ImageURL); err != nil {
			return uploaded, err
		}
		uploaded++
	}

	logger.Debugf("Uploaded %d cover images from catalog page %d.", uploaded, page)
	return uploaded, nil
}

// downloadAndStore fetches one cover image over HTTP and uploads it under
// "{isbn}{ext}" where the extension is derived from the response content type.
func (s *ComicService) downloadAndStore(ctx context.Context, conn storage.StorageConnection, bucket, isbn, imageURL string) error {
	const op = "ComicService.downloadAndStore"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to build image request for ISBN %s", isbn), err, false, false)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to download image for ISBN %s", isbn), err, false, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return exception.NewBatchError(op, fmt.Sprintf("image download for ISBN %s returned status %d", isbn, resp.StatusCode), nil, false, resp.StatusCode >= 500)
	}

	contentType := resp.Header.Get("Content-Type")
	objectName := isbn + extensionForContentType(contentType)

	if err := conn.Upload(ctx, bucket, objectName, resp.Body, contentType); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to upload image %s", objectName), err, false, true)
	}
	return nil
}

// imageStorage resolves the configured image storage connection and its bucket.
func (s *ComicService) imageStorage() (storage.StorageConnection, string, error) {
	const op = "ComicService.imageStorage"

	ref := s.cfg.Comical.Infrastructure.ImageStorageRef
	conn, err := s.storageResolver.Resolve(ref)
	if err != nil {
		return nil, "", exception.NewBatchError(op, fmt.Sprintf("failed to resolve image storage '%s'", ref), err, false, true)
	}

	var storageCfg storageconfig.StorageConfig
	if err := storage.DecodeStorageConfig(s.cfg, ref, &storageCfg); err != nil {
		return nil, "", exception.NewBatchError(op, fmt.Sprintf("failed to decode storage config '%s'", ref), err, false, false)
	}
	return conn, storageCfg.BucketName, nil
}

// extensionForContentType maps an image MIME type to a file extension,
// defaulting to .jpg for unknown types.
func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
