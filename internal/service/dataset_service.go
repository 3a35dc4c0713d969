package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datamart-io/marketplace-api/internal/dto"
	"github.com/datamart-io/marketplace-api/internal/models"
	"github.com/datamart-io/marketplace-api/internal/repository"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
)

const marketplaceCacheKey = "marketplace:listings"

type datasetStore interface {
	Create(ctx context.Context, dataset *models.Dataset) error
	GetByID(ctx context.Context, id string) (*models.Dataset, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Dataset, error)
	ListMarketplace(ctx context.Context) ([]models.MarketplaceItem, error)
	MarkAnonymized(ctx context.Context, id, anonymizedPath string, dataPoints int) (bool, error)
	MarkFailed(ctx context.Context, id string) (bool, error)
	SetListed(ctx context.Context, id string, listed bool) (bool, error)
	IncrementViews(ctx context.Context, id string) error
}

type uploadEntitlements interface {
	ReserveUploadSlot(ctx context.Context, sellerID string) error
	ReleaseUploadSlot(ctx context.Context, sellerID string)
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	Path(filename string) string
}

type anonymizationSubmitter interface {
	Submit(datasetID, rawFilePath string) error
}

type tabularPreviewer interface {
	PreviewRows(path string, limit int) ([]string, []map[string]string, error)
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type downloadSigner interface {
	Generate(datasetID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (datasetID, relPath string, expiresAt time.Time, err error)
}

type purchaseChecker interface {
	HasPurchase(ctx context.Context, buyerID, datasetID string) (bool, error)
}

type cacheObserver interface {
	ObserveCacheLookup(hit bool)
}

// DatasetUpload carries one multipart file through intake.
type DatasetUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Content     io.ReadSeeker
}

// DatasetDownload is an open artifact handle ready to stream to the client.
// The caller owns closing File.
type DatasetDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	SizeBytes   int64
}

// DatasetServiceParams bundles the collaborators for NewDatasetService.
type DatasetServiceParams struct {
	Repo          datasetStore
	Entitlements  uploadEntitlements
	RawStore      fileStore
	ArtifactStore fileStore
	Submitter     anonymizationSubmitter
	Tabular       tabularPreviewer
	Cache         listingCache
	Signer        downloadSigner
	Purchases     purchaseChecker
	Metrics       cacheObserver
	Validator     *validator.Validate
	Logger        *zap.Logger

	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	PreviewRows      int
	CacheTTL         time.Duration
	DownloadBasePath string
}

// DatasetService owns the dataset lifecycle: intake, the anonymization
// transitions, marketplace listing, previews and artifact downloads. Raw
// uploads never leave the server; every externally visible artifact is the
// anonymized output.
type DatasetService struct {
	repo          datasetStore
	entitlements  uploadEntitlements
	rawStore      fileStore
	artifactStore fileStore
	submitter     anonymizationSubmitter
	tabular       tabularPreviewer
	cache         listingCache
	signer        downloadSigner
	purchases     purchaseChecker
	metrics       cacheObserver
	validator     *validator.Validate
	logger        *zap.Logger

	maxFileSize  int64
	allowedMIMEs []string
	previewRows  int
	cacheTTL     time.Duration
	downloadBase string
}

// NewDatasetService constructs the service.
func NewDatasetService(p DatasetServiceParams) *DatasetService {
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.PreviewRows <= 0 {
		p.PreviewRows = 5
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = time.Minute
	}
	return &DatasetService{
		repo:          p.Repo,
		entitlements:  p.Entitlements,
		rawStore:      p.RawStore,
		artifactStore: p.ArtifactStore,
		submitter:     p.Submitter,
		tabular:       p.Tabular,
		cache:         p.Cache,
		signer:        p.Signer,
		purchases:     p.Purchases,
		metrics:       p.Metrics,
		validator:     p.Validator,
		logger:        p.Logger,
		maxFileSize:   p.MaxFileSizeBytes,
		allowedMIMEs:  p.AllowedMIMEs,
		previewRows:   p.PreviewRows,
		cacheTTL:      p.CacheTTL,
		downloadBase:  p.DownloadBasePath,
	}
}

// CreateUpload validates the upload, reserves a quota slot, persists the raw
// file and dataset record, and queues anonymization. The returned dataset is
// in processing state and not yet visible in the marketplace.
func (s *DatasetService) CreateUpload(ctx context.Context, sellerID string, req dto.UploadDatasetRequest, upload *DatasetUpload) (*models.Dataset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dataset metadata")
	}
	if err := s.validateUpload(upload); err != nil {
		return nil, err
	}

	if err := s.entitlements.ReserveUploadSlot(ctx, sellerID); err != nil {
		return nil, err
	}

	datasetID := uuid.NewString()
	rawName := fmt.Sprintf("raw_%s%s", datasetID, strings.ToLower(filepath.Ext(upload.Filename)))

	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		s.entitlements.ReleaseUploadSlot(ctx, sellerID)
		return nil, appErrors.Wrap(err, appErrors.ErrIO.Code, appErrors.ErrIO.Status, "failed to read upload")
	}
	if _, err := s.rawStore.SaveStream(rawName, upload.Content); err != nil {
		s.entitlements.ReleaseUploadSlot(ctx, sellerID)
		return nil, appErrors.Wrap(err, appErrors.ErrIO.Code, appErrors.ErrIO.Status, "failed to store upload")
	}

	dataset := &models.Dataset{
		ID:               datasetID,
		SellerID:         sellerID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Price:            *req.Price,
		OriginalFilename: upload.Filename,
		RawPath:          rawName,
		ContentType:      upload.ContentType,
		SizeBytes:        upload.Size,
		Listed:           false,
		Status:           models.StatusProcessing,
	}
	if err := s.repo.Create(ctx, dataset); err != nil {
		s.entitlements.ReleaseUploadSlot(ctx, sellerID)
		if delErr := s.rawStore.Delete(rawName); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.Error(delErr), zap.String("file", rawName))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create dataset")
	}

	if err := s.submitter.Submit(datasetID, s.rawStore.Path(rawName)); err != nil {
		s.logger.Error("failed to queue anonymization", zap.Error(err), zap.String("dataset_id", datasetID))
		if _, failErr := s.repo.MarkFailed(ctx, datasetID); failErr != nil {
			s.logger.Error("failed to mark dataset failed after queue rejection", zap.Error(failErr), zap.String("dataset_id", datasetID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue anonymization")
	}

	s.logger.Info("dataset upload accepted",
		zap.String("dataset_id", datasetID),
		zap.String("seller_id", sellerID),
		zap.Int64("size_bytes", upload.Size),
	)
	return dataset, nil
}

func (s *DatasetService) validateUpload(upload *DatasetUpload) error {
	if upload == nil || upload.Content == nil || upload.Filename == "" {
		return appErrors.Clone(appErrors.ErrValidation, "dataset file is required")
	}
	if s.maxFileSize > 0 && upload.Size > s.maxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", s.maxFileSize))
	}
	if ext := strings.ToLower(filepath.Ext(upload.Filename)); ext != ".csv" {
		return appErrors.Clone(appErrors.ErrValidation, "only CSV files are accepted")
	}
	if len(s.allowedMIMEs) == 0 {
		return nil
	}

	detected, err := s.detectMime(upload.Content)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrIO.Code, appErrors.ErrIO.Status, "failed to inspect upload")
	}
	for _, allowed := range s.allowedMIMEs {
		if strings.EqualFold(allowed, detected) || strings.EqualFold(allowed, upload.ContentType) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported content type %q", detected))
}

func (s *DatasetService) detectMime(r io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	mime := http.DetectContentType(buf[:n])
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	return mime, nil
}

// OnAnonymizationComplete applies the terminal transition reported by the
// anonymization runner. The repository status guard makes duplicate delivery
// a no-op, so this handler is safe to call more than once per dataset.
func (s *DatasetService) OnAnonymizationComplete(ctx context.Context, datasetID string, outcome AnonymizationOutcome) {
	var (
		applied bool
		err     error
	)
	if outcome.Success {
		applied, err = s.repo.MarkAnonymized(ctx, datasetID, outcome.OutputPath, outcome.RowCount)
	} else {
		applied, err = s.repo.MarkFailed(ctx, datasetID)
	}
	if err != nil {
		s.logger.Error("failed to apply anonymization outcome",
			zap.Error(err),
			zap.String("dataset_id", datasetID),
			zap.Bool("success", outcome.Success),
		)
		return
	}
	if !applied {
		s.logger.Debug("anonymization outcome ignored, dataset already terminal", zap.String("dataset_id", datasetID))
		return
	}

	if outcome.Success {
		s.logger.Info("dataset anonymized",
			zap.String("dataset_id", datasetID),
			zap.Int("data_points", outcome.RowCount),
		)
	} else {
		s.logger.Warn("dataset anonymization failed",
			zap.String("dataset_id", datasetID),
			zap.String("cause", outcome.Cause),
		)
	}
	s.invalidateMarketplaceCache(ctx)
}

// SetListing toggles marketplace visibility for a seller-owned dataset. Only
// anonymized datasets can be listed; processing and failed datasets reject
// the change.
func (s *DatasetService) SetListing(ctx context.Context, sellerID, datasetID string, req dto.UpdateListingRequest) (*models.Dataset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "listed flag is required")
	}

	dataset, err := s.getDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.SellerID != sellerID {
		return nil, appErrors.ErrForbidden
	}
	if dataset.Status != models.StatusAnonymized {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "dataset is not anonymized yet")
	}

	updated, err := s.repo.SetListed(ctx, datasetID, *req.Listed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update listing")
	}
	if !updated {
		// Lost to a concurrent transition out of the anonymized state.
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "dataset is not anonymized yet")
	}

	dataset.Listed = *req.Listed
	s.invalidateMarketplaceCache(ctx)
	return dataset, nil
}

// ListMine returns the seller's datasets in every lifecycle state.
func (s *DatasetService) ListMine(ctx context.Context, sellerID string) ([]models.Dataset, error) {
	datasets, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list datasets")
	}
	return datasets, nil
}

// ListMarketplace returns listed, anonymized datasets, minus the ids in
// excludeIDs (typically the caller's prior purchases). The unfiltered base
// listing is cached; exclusions are applied per request.
func (s *DatasetService) ListMarketplace(ctx context.Context, excludeIDs []string) ([]models.MarketplaceItem, error) {
	var items []models.MarketplaceItem
	err := s.cache.Get(ctx, marketplaceCacheKey, &items)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.ObserveCacheLookup(true)
		}
	case errors.Is(err, repository.ErrCacheMiss):
		if s.metrics != nil {
			s.metrics.ObserveCacheLookup(false)
		}
		items, err = s.repo.ListMarketplace(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marketplace")
		}
		if cacheErr := s.cache.Set(ctx, marketplaceCacheKey, items, s.cacheTTL); cacheErr != nil {
			s.logger.Warn("failed to cache marketplace listing", zap.Error(cacheErr))
		}
	default:
		s.logger.Warn("marketplace cache lookup failed", zap.Error(err))
		items, err = s.repo.ListMarketplace(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marketplace")
		}
	}

	if len(excludeIDs) == 0 {
		return items, nil
	}
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}
	filtered := make([]models.MarketplaceItem, 0, len(items))
	for _, item := range items {
		if _, skip := excluded[item.ID]; skip {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered, nil
}

// Preview returns the header row and the first rows of the anonymized
// artifact, incrementing the view counter. The requester's own datasets are
// previewable unlisted; everyone else only sees listed ones.
func (s *DatasetService) Preview(ctx context.Context, requesterID, datasetID string) (*dto.PreviewResponse, error) {
	dataset, err := s.getDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.Status != models.StatusAnonymized || dataset.AnonymizedPath == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "dataset is not anonymized yet")
	}
	if !dataset.Listed && dataset.SellerID != requesterID {
		return nil, appErrors.ErrNotFound
	}

	if err := s.repo.IncrementViews(ctx, datasetID); err != nil {
		s.logger.Warn("failed to increment dataset views", zap.Error(err), zap.String("dataset_id", datasetID))
	}

	headers, rows, err := s.tabular.PreviewRows(s.artifactStore.Path(*dataset.AnonymizedPath), s.previewRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIO.Code, appErrors.ErrIO.Status, "failed to read dataset preview")
	}
	return &dto.PreviewResponse{Headers: headers, Rows: rows}, nil
}

// GetDownloadURL authorizes access to the anonymized artifact and returns a
// signed, time-limited URL. Sellers can fetch their own datasets; buyers must
// hold a purchase.
func (s *DatasetService) GetDownloadURL(ctx context.Context, requesterID, datasetID string) (*dto.DownloadURLResponse, error) {
	dataset, err := s.getDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.Status != models.StatusAnonymized || dataset.AnonymizedPath == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "dataset is not anonymized yet")
	}

	if dataset.SellerID != requesterID {
		owned, err := s.purchases.HasPurchase(ctx, requesterID, datasetID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify purchase")
		}
		if !owned {
			return nil, appErrors.ErrForbidden
		}
	}

	token, expiresAt, err := s.signer.Generate(datasetID, *dataset.AnonymizedPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &dto.DownloadURLResponse{
		URL:       fmt.Sprintf("%s/datasets/%s/download?token=%s", s.downloadBase, datasetID, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Download resolves a signed token to an open artifact handle. Tokens signed
// before a failed re-transition no longer match the stored path and are
// rejected.
func (s *DatasetService) Download(ctx context.Context, token string) (*DatasetDownload, error) {
	datasetID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	dataset, err := s.getDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset.Status != models.StatusAnonymized || dataset.AnonymizedPath == nil || *dataset.AnonymizedPath != relPath {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}

	file, err := s.artifactStore.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIO.Code, appErrors.ErrIO.Status, "failed to open dataset artifact")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrIO.Code, appErrors.ErrIO.Status, "failed to stat dataset artifact")
	}

	return &DatasetDownload{
		File:        file,
		Filename:    "anonymized_" + dataset.OriginalFilename,
		ContentType: "text/csv",
		SizeBytes:   info.Size(),
	}, nil
}

func (s *DatasetService) getDataset(ctx context.Context, id string) (*models.Dataset, error) {
	dataset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	return dataset, nil
}

func (s *DatasetService) invalidateMarketplaceCache(ctx context.Context) {
	if err := s.cache.Delete(ctx, marketplaceCacheKey); err != nil {
		s.logger.Warn("failed to invalidate marketplace cache", zap.Error(err))
	}
}
