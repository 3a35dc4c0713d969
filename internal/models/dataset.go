package models

import "time"

// DatasetStatus tracks the anonymization lifecycle. Both anonymized and
// failed are terminal.
type DatasetStatus string

const (
	StatusProcessing DatasetStatus = "processing"
	StatusAnonymized DatasetStatus = "anonymized"
	StatusFailed     DatasetStatus = "failed"
)

// Dataset represents one uploaded dataset and its processing state. The raw
// and anonymized file locations never leave the service; buyers and sellers
// reach artifacts through signed download URLs only.
type Dataset struct {
	ID               string        `db:"id" json:"id"`
	SellerID         string        `db:"seller_id" json:"seller_id"`
	Title            string        `db:"title" json:"title"`
	Description      string        `db:"description" json:"description"`
	Category         string        `db:"category" json:"category"`
	Price            float64       `db:"price" json:"price"`
	Views            int           `db:"views" json:"views"`
	DataPoints       int           `db:"data_points" json:"data_points"`
	OriginalFilename string        `db:"original_filename" json:"original_filename"`
	RawPath          string        `db:"raw_path" json:"-"`
	AnonymizedPath   *string       `db:"anonymized_path" json:"-"`
	ContentType      string        `db:"content_type" json:"content_type"`
	SizeBytes        int64         `db:"size_bytes" json:"size_bytes"`
	Listed           bool          `db:"listed" json:"listed"`
	Status           DatasetStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// MarketplaceItem is a listed dataset joined with its seller's display name.
type MarketplaceItem struct {
	Dataset
	SellerName string `db:"seller_name" json:"seller_name"`
}
