package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/comical/pkg/batch/adapter/database"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
)

// SQLComicRepository implements repository.ComicRepository on GORM.
type SQLComicRepository struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

var _ repository.ComicRepository = (*SQLComicRepository)(nil)

// NewSQLComicRepository creates a new SQLComicRepository.
func NewSQLComicRepository(dbResolver database.DBConnectionResolver, dbName string) repository.ComicRepository {
	return &SQLComicRepository{
		dbResolver: dbResolver,
		dbName:     dbName,
	}
}

func (r *SQLComicRepository) db(ctx context.Context) (*gorm.DB, error) {
	return resolveGormDB(ctx, r.dbResolver, r.dbName)
}

func (r *SQLComicRepository) UpsertComics(ctx context.Context, comics []*model.Comic) error {
	const op = "SQLComicRepository.UpsertComics"
	if len(comics) == 0 {
		return nil
	}
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	entities := make([]*ComicEntity, 0, len(comics))
	for _, c := range comics {
		entities = append(entities, fromDomainComic(c))
	}

	if err := db.Clauses(onConflictUpdateAll("isbn")).Create(&entities).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to upsert %d comics", len(comics)), err, false, true)
	}
	return nil
}

func (r *SQLComicRepository) FindComicByISBN(ctx context.Context, isbn string) (*model.Comic, error) {
	const op = "SQLComicRepository.FindComicByISBN"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var entity ComicEntity
	if err := db.Where("isbn = ?", isbn).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find comic (ISBN: %s)", isbn), err, false, true)
	}
	return toDomainComic(&entity), nil
}

func (r *SQLComicRepository) CountComics(ctx context.Context) (int64, error) {
	const op = "SQLComicRepository.CountComics"
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&ComicEntity{}).Count(&count).Error; err != nil {
		if isTableNotExistError(ctx, r.dbResolver, r.dbName, err) {
			return 0, nil
		}
		return 0, exception.NewBatchError(op, "failed to count comics", err, false, true)
	}
	return count, nil
}
