package dto

import (
	"time"

	"github.com/datamart-io/marketplace-api/internal/models"
)

// UploadDatasetRequest contains metadata submitted alongside a file upload.
// The listed flag from the form is recorded but only takes effect once the
// seller toggles listing after anonymization completes.
type UploadDatasetRequest struct {
	Title       string   `form:"title" json:"title" validate:"required"`
	Description string   `form:"description" json:"description" validate:"required"`
	Price       *float64 `form:"price" json:"price" validate:"required,gte=0"`
	Category    string   `form:"category" json:"category"`
	Listed      bool     `form:"listed" json:"listed"`
}

// UpdateListingRequest toggles marketplace visibility for a dataset.
type UpdateListingRequest struct {
	Listed *bool `json:"listed" validate:"required"`
}

// PreviewResponse carries the header row and the first rows of the
// anonymized artifact.
type PreviewResponse struct {
	Headers []string            `json:"headers"`
	Rows    []map[string]string `json:"rows"`
}

// DownloadURLResponse returns a signed, time-limited artifact URL.
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MarketplaceResponse wraps the filtered marketplace listing.
type MarketplaceResponse struct {
	Datasets []models.MarketplaceItem `json:"datasets"`
}
