package inmemory

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
)

// InMemoryComicRepository implements repository.ComicRepository with a mutex-guarded map.
type InMemoryComicRepository struct {
	mu     sync.RWMutex
	comics map[string]*model.Comic // keyed by ISBN
}

var _ repository.ComicRepository = (*InMemoryComicRepository)(nil)

// NewInMemoryComicRepository creates an empty InMemoryComicRepository.
func NewInMemoryComicRepository() *InMemoryComicRepository {
	return &InMemoryComicRepository{
		comics: make(map[string]*model.Comic),
	}
}

func (r *InMemoryComicRepository) UpsertComics(_ context.Context, comics []*model.Comic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, comic := range comics {
		copied := *comic
		if existing, ok := r.comics[comic.ISBN]; ok {
			copied.CreatedAt = existing.CreatedAt
		}
		copied.UpdatedAt = now
		r.comics[comic.ISBN] = &copied
	}
	return nil
}

func (r *InMemoryComicRepository) FindComicByISBN(_ context.Context, isbn string) (*model.Comic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comic, ok := r.comics[isbn]
	if !ok {
		return nil, nil
	}
	copied := *comic
	return &copied, nil
}

func (r *InMemoryComicRepository) CountComics(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.comics)), nil
}
