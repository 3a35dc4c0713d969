package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/datamart-io/marketplace-api/internal/models"
)

// UserRepository handles user and seller entitlement persistence.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID retrieves one user row.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, subscription_tier, upload_count, created_at, updated_at
	FROM users WHERE id = $1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// IncrementUploadCountBelow bumps the seller's upload counter only while it
// is below the limit and the tier still matches. The check and increment are
// a single statement, so two concurrent uploads at limit-1 cannot both pass.
func (r *UserRepository) IncrementUploadCountBelow(ctx context.Context, id string, tier models.SubscriptionTier, limit int) (bool, error) {
	const query = `UPDATE users SET upload_count = upload_count + 1, updated_at = $4
	WHERE id = $1 AND subscription_tier = $2 AND upload_count < $3`
	res, err := r.db.ExecContext(ctx, query, id, tier, limit, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("increment upload count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check upload count rows: %w", err)
	}
	return affected > 0, nil
}

// IncrementUploadCount bumps the counter for unbounded tiers. The tier guard
// keeps the statement a no-op when the subscription changed concurrently.
func (r *UserRepository) IncrementUploadCount(ctx context.Context, id string, tier models.SubscriptionTier) (bool, error) {
	const query = `UPDATE users SET upload_count = upload_count + 1, updated_at = $3
	WHERE id = $1 AND subscription_tier = $2`
	res, err := r.db.ExecContext(ctx, query, id, tier, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("increment upload count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check upload count rows: %w", err)
	}
	return affected > 0, nil
}

// DecrementUploadCount releases a reserved slot when record creation fails
// after a successful reservation.
func (r *UserRepository) DecrementUploadCount(ctx context.Context, id string) error {
	const query = `UPDATE users SET upload_count = GREATEST(upload_count - 1, 0), updated_at = $2
	WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("decrement upload count: %w", err)
	}
	return nil
}

// SetSubscription changes the tier and resets the upload counter.
func (r *UserRepository) SetSubscription(ctx context.Context, id string, tier models.SubscriptionTier) (bool, error) {
	const query = `UPDATE users SET subscription_tier = $2, upload_count = 0, updated_at = $3
	WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, tier, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set subscription: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check subscription rows: %w", err)
	}
	return affected > 0, nil
}
