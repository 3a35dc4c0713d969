package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/datamart-io/marketplace-api/internal/models"
)

const datasetColumns = `id, seller_id, title, description, category, price, views, data_points,
       original_filename, raw_path, anonymized_path, content_type, size_bytes, listed, status,
       created_at, updated_at`

// DatasetRepository handles dataset record persistence and the lifecycle
// state transitions.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository constructs the repository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// Create stores a new dataset record in processing state.
func (r *DatasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	if dataset.ID == "" {
		dataset.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dataset.CreatedAt.IsZero() {
		dataset.CreatedAt = now
	}
	dataset.UpdatedAt = now
	const query = `INSERT INTO datasets
	(id, seller_id, title, description, category, price, views, data_points, original_filename,
	 raw_path, anonymized_path, content_type, size_bytes, listed, status, created_at, updated_at)
	VALUES (:id, :seller_id, :title, :description, :category, :price, :views, :data_points, :original_filename,
	 :raw_path, :anonymized_path, :content_type, :size_bytes, :listed, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dataset); err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	return nil
}

// GetByID retrieves one dataset row.
func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`
	var dataset models.Dataset
	if err := r.db.GetContext(ctx, &dataset, query, id); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// ListBySeller returns the seller's datasets, newest first.
func (r *DatasetRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE seller_id = $1 ORDER BY created_at DESC`
	var records []models.Dataset
	if err := r.db.SelectContext(ctx, &records, query, sellerID); err != nil {
		return nil, fmt.Errorf("list seller datasets: %w", err)
	}
	return records, nil
}

// ListMarketplace returns listed, fully anonymized datasets joined with the
// seller display name. Caller-specific exclusions are applied upstream.
func (r *DatasetRepository) ListMarketplace(ctx context.Context) ([]models.MarketplaceItem, error) {
	const query = `SELECT d.id, d.seller_id, d.title, d.description, d.category, d.price, d.views,
       d.data_points, d.original_filename, d.raw_path, d.anonymized_path, d.content_type,
       d.size_bytes, d.listed, d.status, d.created_at, d.updated_at, u.full_name AS seller_name
	FROM datasets d
	JOIN users u ON u.id = d.seller_id
	WHERE d.listed = true AND d.status = 'anonymized'
	ORDER BY d.created_at DESC`
	var records []models.MarketplaceItem
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list marketplace datasets: %w", err)
	}
	return records, nil
}

// MarkAnonymized applies the successful terminal transition. The status
// guard makes duplicate completion callbacks no-ops.
func (r *DatasetRepository) MarkAnonymized(ctx context.Context, id, anonymizedPath string, dataPoints int) (bool, error) {
	const query = `UPDATE datasets SET status = 'anonymized', anonymized_path = $2, data_points = $3, updated_at = $4
	WHERE id = $1 AND status = 'processing'`
	res, err := r.db.ExecContext(ctx, query, id, anonymizedPath, dataPoints, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark dataset anonymized: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check dataset transition rows: %w", err)
	}
	return affected > 0, nil
}

// MarkFailed applies the failed terminal transition, forcing the dataset out
// of the marketplace and clearing any anonymized location.
func (r *DatasetRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE datasets SET status = 'failed', listed = false, anonymized_path = NULL, updated_at = $2
	WHERE id = $1 AND status = 'processing'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark dataset failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check dataset transition rows: %w", err)
	}
	return affected > 0, nil
}

// SetListed toggles marketplace visibility. The status guard enforces that
// only anonymized datasets can be listed, even under concurrent transitions.
func (r *DatasetRepository) SetListed(ctx context.Context, id string, listed bool) (bool, error) {
	const query = `UPDATE datasets SET listed = $2, updated_at = $3
	WHERE id = $1 AND status = 'anonymized'`
	res, err := r.db.ExecContext(ctx, query, id, listed, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set dataset listing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check dataset listing rows: %w", err)
	}
	return affected > 0, nil
}

// IncrementViews bumps the preview counter.
func (r *DatasetRepository) IncrementViews(ctx context.Context, id string) error {
	const query = `UPDATE datasets SET views = views + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment dataset views: %w", err)
	}
	return nil
}

// CountBySeller returns the number of datasets a seller owns.
func (r *DatasetRepository) CountBySeller(ctx context.Context, sellerID string) (int, error) {
	const query = `SELECT COUNT(*) FROM datasets WHERE seller_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sellerID); err != nil {
		return 0, fmt.Errorf("count seller datasets: %w", err)
	}
	return count, nil
}
