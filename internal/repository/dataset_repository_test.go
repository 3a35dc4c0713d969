package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/datamart-io/marketplace-api/internal/models"
)

func newDatasetRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func datasetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "seller_id", "title", "description", "category", "price", "views", "data_points",
		"original_filename", "raw_path", "anonymized_path", "content_type", "size_bytes",
		"listed", "status", "created_at", "updated_at",
	})
}

func TestDatasetRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO datasets")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	dataset := &models.Dataset{
		SellerID:         "seller-1",
		Title:            "Retail Transactions",
		Description:      "POS data 2024",
		Price:            49.90,
		OriginalFilename: "transactions.csv",
		RawPath:          "raw_ds-1.csv",
		Status:           models.StatusProcessing,
	}
	require.NoError(t, repo.Create(context.Background(), dataset))
	require.NotEmpty(t, dataset.ID)

	rows := datasetRows().AddRow(dataset.ID, "seller-1", dataset.Title, dataset.Description, "", 49.90, 0, 0,
		"transactions.csv", "raw_ds-1.csv", nil, "text/csv", 1024, false, "processing", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, seller_id, title")).
		WithArgs(dataset.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), dataset.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, found.Status)
	require.Nil(t, found.AnonymizedPath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryMarkAnonymizedGuardsStatus(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE datasets SET status = 'anonymized'")).
		WithArgs("ds-1", "anonymized_ds-1.csv", 120, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.MarkAnonymized(context.Background(), "ds-1", "anonymized_ds-1.csv", 120)
	require.NoError(t, err)
	require.True(t, applied)

	// Second delivery finds no processing row and becomes a no-op.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE datasets SET status = 'anonymized'")).
		WithArgs("ds-1", "anonymized_ds-1.csv", 120, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err = repo.MarkAnonymized(context.Background(), "ds-1", "anonymized_ds-1.csv", 120)
	require.NoError(t, err)
	require.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryMarkFailedClearsListing(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE datasets SET status = 'failed', listed = false, anonymized_path = NULL")).
		WithArgs("ds-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.MarkFailed(context.Background(), "ds-1")
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositorySetListedRequiresAnonymized(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE datasets SET listed = $2")).
		WithArgs("ds-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.SetListed(context.Background(), "ds-1", true)
	require.NoError(t, err)
	require.False(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryListMarketplaceFiltersInSQL(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "seller_id", "title", "description", "category", "price", "views", "data_points",
		"original_filename", "raw_path", "anonymized_path", "content_type", "size_bytes",
		"listed", "status", "created_at", "updated_at", "seller_name",
	}).AddRow("ds-1", "seller-1", "Retail", "desc", "retail", 10.0, 4, 100,
		"retail.csv", "raw_ds-1.csv", "anonymized_ds-1.csv", "text/csv", 512, true, "anonymized", time.Now(), time.Now(), "Ada Seller")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE d.listed = true AND d.status = 'anonymized'")).
		WillReturnRows(rows)

	items, err := repo.ListMarketplace(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Ada Seller", items[0].SellerName)
	require.Equal(t, models.StatusAnonymized, items[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
