package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/datamart-io/marketplace-api/internal/models"
)

func newPurchaseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPurchaseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPurchaseRepoMock(t)
	defer cleanup()

	repo := NewPurchaseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	purchase := &models.Purchase{
		BuyerID:   "buyer-1",
		DatasetID: "ds-1",
		SellerID:  "seller-1",
		PricePaid: 25.00,
	}
	require.NoError(t, repo.Create(context.Background(), purchase))
	require.NotEmpty(t, purchase.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newPurchaseRepoMock(t)
	defer cleanup()

	repo := NewPurchaseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "purchases_buyer_dataset_key"})

	err := repo.Create(context.Background(), &models.Purchase{
		BuyerID:   "buyer-1",
		DatasetID: "ds-1",
		SellerID:  "seller-1",
		PricePaid: 25.00,
	})
	require.ErrorIs(t, err, ErrDuplicatePurchase)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepositoryListByBuyer(t *testing.T) {
	db, mock, cleanup := newPurchaseRepoMock(t)
	defer cleanup()

	repo := NewPurchaseRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "buyer_id", "dataset_id", "seller_id", "price_paid", "created_at",
		"title", "description", "category", "current_price", "original_filename", "seller_name",
	}).AddRow("p-1", "buyer-1", "ds-1", "seller-1", 25.00, time.Now(),
		"Retail", "desc", "retail", 40.00, "retail.csv", "Ada Seller")

	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases p")).
		WithArgs("buyer-1").
		WillReturnRows(rows)

	purchases, err := repo.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	// Captured price stays fixed even after the seller reprices the dataset.
	require.Equal(t, 25.00, purchases[0].PricePaid)
	require.Equal(t, 40.00, purchases[0].CurrentPrice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepositoryHasPurchase(t *testing.T) {
	db, mock, cleanup := newPurchaseRepoMock(t)
	defer cleanup()

	repo := NewPurchaseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("buyer-1", "ds-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	owned, err := repo.HasPurchase(context.Background(), "buyer-1", "ds-1")
	require.NoError(t, err)
	require.True(t, owned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepositorySellerRevenue(t *testing.T) {
	db, mock, cleanup := newPurchaseRepoMock(t)
	defer cleanup()

	repo := NewPurchaseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(price_paid), 0)")).
		WithArgs("seller-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(75.50))

	revenue, err := repo.SellerRevenue(context.Background(), "seller-1")
	require.NoError(t, err)
	require.Equal(t, 75.50, revenue)
	require.NoError(t, mock.ExpectationsWereMet())
}
