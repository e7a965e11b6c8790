package sql_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/comical/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/comical/pkg/batch/adapter/database/gorm"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	sqlrepo "github.com/tigerroll/comical/pkg/batch/infrastructure/repository/sql"
)

func setupPageErrorMock(t *testing.T) (sqlmock.Sqlmock, repository.PageErrorRepository) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		sqlDB.Close()
	})

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	cfg := dbconfig.DatabaseConfig{Type: "mock_db"}
	dbConn := gormadapter.NewGormDBAdapter(gormDB, cfg, "mock_db")
	resolver := &singleConnResolver{conn: dbConn}
	repo := sqlrepo.NewSQLPageErrorRepository(resolver, "mock_db")
	return mock, repo
}

var pageErrorColumns = []string{
	"id", "batch_id", "page_number", "phase", "error_type", "error_message",
	"retry_count", "last_retry_at", "resolved", "resolved_at", "created_at",
}

func TestUpsertPageError_InsertsNewRow(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	pageError := model.NewBatchPageError("batch-1", 7, model.PhaseRegistration, "api_error", "catalog request failed")

	mock.ExpectQuery("SELECT (.+) FROM `batch_page_errors` WHERE batch_id = \\?").
		WithArgs("batch-1", 7, string(model.PhaseRegistration), 1).
		WillReturnRows(sqlmock.NewRows(pageErrorColumns))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `batch_page_errors`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertPageError(context.Background(), pageError)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPageError_BumpsRetryCountOnConflict(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	existing := model.NewBatchPageError("batch-1", 7, model.PhaseRegistration, "api_error", "first failure")
	existing.RetryCount = 2

	mock.ExpectQuery("SELECT (.+) FROM `batch_page_errors` WHERE batch_id = \\?").
		WithArgs("batch-1", 7, string(model.PhaseRegistration), 1).
		WillReturnRows(sqlmock.NewRows(pageErrorColumns).AddRow(
			existing.ID, existing.BatchID, existing.PageNumber, string(existing.Phase),
			existing.ErrorType, existing.ErrorMessage, existing.RetryCount,
			existing.LastRetryAt, existing.Resolved, existing.ResolvedAt, existing.CreatedAt,
		))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `batch_page_errors` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	retry := model.NewBatchPageError("batch-1", 7, model.PhaseRegistration, "api_error", "second failure")
	err := repo.UpsertPageError(context.Background(), retry)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUnresolvedErrorPages(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	mock.ExpectQuery("SELECT DISTINCT `page_number` FROM `batch_page_errors`").
		WithArgs("batch-1", string(model.PhaseRegistration), false).
		WillReturnRows(sqlmock.NewRows([]string{"page_number"}).AddRow(3).AddRow(9))

	pages, err := repo.FindUnresolvedErrorPages(context.Background(), "batch-1", model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 9}, pages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnresolvedErrors(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	mock.ExpectQuery("SELECT COUNT\\(DISTINCT\\(`page_number`\\)\\) FROM `batch_page_errors`").
		WithArgs("batch-1", string(model.PhaseImageDownload), false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountUnresolvedErrors(context.Background(), "batch-1", model.PhaseImageDownload)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkResolved(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `batch_page_errors` SET").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.MarkResolved(context.Background(), "batch-1", []int{3, 9}, model.PhaseRegistration)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkResolved_EmptyPagesIsNoOp(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	err := repo.MarkResolved(context.Background(), "batch-1", nil, model.PhaseRegistration)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePageRange(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `batch_page_errors`").
		WithArgs("batch-1", string(model.PhaseRegistration), 10, 20).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	deleted, err := repo.DeletePageRange(context.Background(), "batch-1", 10, 20, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUnresolvedByBatch(t *testing.T) {
	mock, repo := setupPageErrorMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `batch_page_errors`").
		WithArgs("batch-1", false).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	deleted, err := repo.DeleteUnresolvedByBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
