package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/datamart-io/marketplace-api/internal/models"
)

// ErrDuplicatePurchase signals that the (buyer, dataset) pair already exists.
// It surfaces the purchases_buyer_dataset_key unique constraint so callers
// never race a find-then-insert.
var ErrDuplicatePurchase = errors.New("purchase already exists")

const pqUniqueViolation = "23505"

// PurchaseRepository handles purchase ledger persistence. Rows are
// insert-only and never mutated.
type PurchaseRepository struct {
	db *sqlx.DB
}

// NewPurchaseRepository constructs the repository.
func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Create inserts a purchase. A unique constraint violation on
// (buyer_id, dataset_id) maps to ErrDuplicatePurchase.
func (r *PurchaseRepository) Create(ctx context.Context, purchase *models.Purchase) error {
	if purchase.ID == "" {
		purchase.ID = uuid.NewString()
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO purchases (id, buyer_id, dataset_id, seller_id, price_paid, created_at)
	VALUES (:id, :buyer_id, :dataset_id, :seller_id, :price_paid, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, purchase); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicatePurchase
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

// ListByBuyer returns the buyer's purchases joined with dataset summaries.
func (r *PurchaseRepository) ListByBuyer(ctx context.Context, buyerID string) ([]models.PurchaseDetail, error) {
	const query = `SELECT p.id, p.buyer_id, p.dataset_id, p.seller_id, p.price_paid, p.created_at,
       d.title, d.description, d.category, d.price AS current_price, d.original_filename,
       u.full_name AS seller_name
	FROM purchases p
	JOIN datasets d ON d.id = p.dataset_id
	JOIN users u ON u.id = p.seller_id
	WHERE p.buyer_id = $1
	ORDER BY p.created_at DESC`
	var records []models.PurchaseDetail
	if err := r.db.SelectContext(ctx, &records, query, buyerID); err != nil {
		return nil, fmt.Errorf("list buyer purchases: %w", err)
	}
	return records, nil
}

// PurchasedDatasetIDs returns the dataset ids the buyer already owns.
func (r *PurchaseRepository) PurchasedDatasetIDs(ctx context.Context, buyerID string) ([]string, error) {
	const query = `SELECT dataset_id FROM purchases WHERE buyer_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, buyerID); err != nil {
		return nil, fmt.Errorf("list purchased dataset ids: %w", err)
	}
	return ids, nil
}

// HasPurchase reports whether the buyer owns the dataset.
func (r *PurchaseRepository) HasPurchase(ctx context.Context, buyerID, datasetID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM purchases WHERE buyer_id = $1 AND dataset_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, buyerID, datasetID); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// SellerRevenue sums the captured purchase prices across a seller's sales.
func (r *PurchaseRepository) SellerRevenue(ctx context.Context, sellerID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(price_paid), 0) FROM purchases WHERE seller_id = $1`
	var revenue float64
	if err := r.db.GetContext(ctx, &revenue, query, sellerID); err != nil {
		return 0, fmt.Errorf("sum seller revenue: %w", err)
	}
	return revenue, nil
}

// ListBySeller returns a seller's sales, newest first, for statements.
func (r *PurchaseRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.PurchaseDetail, error) {
	const query = `SELECT p.id, p.buyer_id, p.dataset_id, p.seller_id, p.price_paid, p.created_at,
       d.title, d.description, d.category, d.price AS current_price, d.original_filename,
       u.full_name AS seller_name
	FROM purchases p
	JOIN datasets d ON d.id = p.dataset_id
	JOIN users u ON u.id = p.seller_id
	WHERE p.seller_id = $1
	ORDER BY p.created_at DESC`
	var records []models.PurchaseDetail
	if err := r.db.SelectContext(ctx, &records, query, sellerID); err != nil {
		return nil, fmt.Errorf("list seller purchases: %w", err)
	}
	return records, nil
}
