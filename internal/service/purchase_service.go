package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/datamart-io/marketplace-api/internal/dto"
	"github.com/datamart-io/marketplace-api/internal/models"
	"github.com/datamart-io/marketplace-api/internal/repository"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
	"github.com/datamart-io/marketplace-api/pkg/export"
)

// ExportFormat selects the statement rendering.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

type purchaseStore interface {
	Create(ctx context.Context, purchase *models.Purchase) error
	ListByBuyer(ctx context.Context, buyerID string) ([]models.PurchaseDetail, error)
	PurchasedDatasetIDs(ctx context.Context, buyerID string) ([]string, error)
	HasPurchase(ctx context.Context, buyerID, datasetID string) (bool, error)
	SellerRevenue(ctx context.Context, sellerID string) (float64, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.PurchaseDetail, error)
}

type purchasableDatasets interface {
	GetByID(ctx context.Context, id string) (*models.Dataset, error)
	CountBySeller(ctx context.Context, sellerID string) (int, error)
}

type tableExporter interface {
	Render(data export.Table) ([]byte, error)
}

type titledTableExporter interface {
	Render(data export.Table, title string) ([]byte, error)
}

// StatementExport carries a rendered seller statement.
type StatementExport struct {
	Content     []byte
	ContentType string
	Filename    string
}

// PurchaseService records purchases against listed anonymized datasets and
// answers ownership and revenue questions. The price a buyer pays is captured
// at purchase time and never changes afterwards.
type PurchaseService struct {
	purchases purchaseStore
	datasets  purchasableDatasets
	csv       tableExporter
	pdf       titledTableExporter
	logger    *zap.Logger
}

// NewPurchaseService constructs the service.
func NewPurchaseService(purchases purchaseStore, datasets purchasableDatasets, csv tableExporter, pdf titledTableExporter, logger *zap.Logger) *PurchaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseService{
		purchases: purchases,
		datasets:  datasets,
		csv:       csv,
		pdf:       pdf,
		logger:    logger,
	}
}

// Purchase buys a dataset for the caller. The dataset must be listed and
// anonymized, the buyer must not be its seller, and repeat purchases of the
// same dataset are rejected by the ledger's unique constraint.
func (s *PurchaseService) Purchase(ctx context.Context, buyerID, datasetID string) (*models.Purchase, error) {
	dataset, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	if dataset.Status != models.StatusAnonymized || !dataset.Listed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "dataset is not available for purchase")
	}
	if dataset.SellerID == buyerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot purchase your own dataset")
	}

	purchase := &models.Purchase{
		BuyerID:   buyerID,
		DatasetID: datasetID,
		SellerID:  dataset.SellerID,
		PricePaid: dataset.Price,
	}
	if err := s.purchases.Create(ctx, purchase); err != nil {
		if errors.Is(err, repository.ErrDuplicatePurchase) {
			return nil, appErrors.ErrAlreadyPurchased
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record purchase")
	}

	s.logger.Info("purchase recorded",
		zap.String("purchase_id", purchase.ID),
		zap.String("buyer_id", buyerID),
		zap.String("dataset_id", datasetID),
		zap.Float64("price_paid", purchase.PricePaid),
	)
	return purchase, nil
}

// ListPurchases returns the buyer's purchase history with dataset summaries.
func (s *PurchaseService) ListPurchases(ctx context.Context, buyerID string) ([]models.PurchaseDetail, error) {
	records, err := s.purchases.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list purchases")
	}
	return records, nil
}

// PurchasedDatasetIDs returns the dataset ids the buyer already owns, used to
// filter the marketplace listing.
func (s *PurchaseService) PurchasedDatasetIDs(ctx context.Context, buyerID string) ([]string, error) {
	ids, err := s.purchases.PurchasedDatasetIDs(ctx, buyerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list purchased datasets")
	}
	return ids, nil
}

// HasPurchase reports whether the buyer owns the dataset.
func (s *PurchaseService) HasPurchase(ctx context.Context, buyerID, datasetID string) (bool, error) {
	return s.purchases.HasPurchase(ctx, buyerID, datasetID)
}

// SellerStats aggregates total revenue and catalogue size for a seller.
func (s *PurchaseService) SellerStats(ctx context.Context, sellerID string) (*dto.SellerStatsResponse, error) {
	revenue, err := s.purchases.SellerRevenue(ctx, sellerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute revenue")
	}
	count, err := s.datasets.CountBySeller(ctx, sellerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count datasets")
	}
	return &dto.SellerStatsResponse{TotalRevenue: revenue, TotalDatasets: count}, nil
}

// ExportStatement renders the seller's sales ledger as CSV or PDF.
func (s *PurchaseService) ExportStatement(ctx context.Context, sellerID string, format ExportFormat) (*StatementExport, error) {
	sales, err := s.purchases.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sales")
	}

	table := export.Table{
		Headers: []string{"Date", "Dataset", "Category", "Price Paid"},
		Rows:    make([]map[string]string, 0, len(sales)),
	}
	for _, sale := range sales {
		table.Rows = append(table.Rows, map[string]string{
			"Date":       sale.CreatedAt.UTC().Format(time.RFC3339),
			"Dataset":    sale.Title,
			"Category":   sale.Category,
			"Price Paid": strconv.FormatFloat(sale.PricePaid, 'f', 2, 64),
		})
	}

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case FormatCSV:
		content, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return &StatementExport{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("statement_%s.csv", stamp),
		}, nil
	case FormatPDF:
		content, err := s.pdf.Render(table, "Sales Statement")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
		}
		return &StatementExport{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("statement_%s.pdf", stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}
