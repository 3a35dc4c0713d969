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

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUserRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "role", "subscription_tier", "upload_count", "created_at", "updated_at"}).
		AddRow("seller-1", "seller@example.com", "Ada Seller", "SELLER", "basic", 3, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, full_name, role, subscription_tier, upload_count")).
		WithArgs("seller-1").
		WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), "seller-1")
	require.NoError(t, err)
	require.Equal(t, models.TierBasic, user.SubscriptionTier)
	require.Equal(t, 3, user.UploadCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryIncrementUploadCountBelow(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET upload_count = upload_count + 1")).
		WithArgs("seller-1", models.TierBasic, 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	reserved, err := repo.IncrementUploadCountBelow(context.Background(), "seller-1", models.TierBasic, 5)
	require.NoError(t, err)
	require.True(t, reserved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryIncrementUploadCountBelowAtLimit(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	// Zero rows affected: the counter reached the limit or the tier changed.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET upload_count = upload_count + 1")).
		WithArgs("seller-1", models.TierBasic, 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	reserved, err := repo.IncrementUploadCountBelow(context.Background(), "seller-1", models.TierBasic, 5)
	require.NoError(t, err)
	require.False(t, reserved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositorySetSubscriptionResetsCounter(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET subscription_tier = $2, upload_count = 0")).
		WithArgs("seller-1", models.TierPro, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.SetSubscription(context.Background(), "seller-1", models.TierPro)
	require.NoError(t, err)
	require.True(t, updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDecrementFloorsAtZero(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("GREATEST(upload_count - 1, 0)")).
		WithArgs("seller-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DecrementUploadCount(context.Background(), "seller-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
