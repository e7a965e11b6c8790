package repository

import (
	"context"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
)

// ComicRepository defines operations for persisting catalog items.
type ComicRepository interface {
	// UpsertComics persists the given items, updating existing rows by ISBN.
	UpsertComics(ctx context.Context, comics []*model.Comic) error

	// FindComicByISBN finds one item by its ISBN.
	FindComicByISBN(ctx context.Context, isbn string) (*model.Comic, error)

	// CountComics returns the total number of persisted items.
	CountComics(ctx context.Context) (int64, error)
}
