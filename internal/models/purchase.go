package models

import "time"

// Purchase grants a buyer a durable entitlement to one dataset's anonymized
// artifact. Rows are insert-only; the (buyer, dataset) pair is unique at the
// database level.
type Purchase struct {
	ID        string    `db:"id" json:"id"`
	BuyerID   string    `db:"buyer_id" json:"buyer_id"`
	DatasetID string    `db:"dataset_id" json:"dataset_id"`
	SellerID  string    `db:"seller_id" json:"seller_id"`
	PricePaid float64   `db:"price_paid" json:"price_paid"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PurchaseDetail joins a purchase with its dataset summary and seller name.
type PurchaseDetail struct {
	Purchase
	Title            string  `db:"title" json:"title"`
	Description      string  `db:"description" json:"description"`
	Category         string  `db:"category" json:"category"`
	CurrentPrice     float64 `db:"current_price" json:"current_price"`
	OriginalFilename string  `db:"original_filename" json:"original_filename"`
	SellerName       string  `db:"seller_name" json:"seller_name"`
}

// SellerStats aggregates marketplace performance for one seller.
type SellerStats struct {
	TotalRevenue  float64   `json:"totalRevenue"`
	TotalDatasets int       `json:"totalDatasets"`
	GeneratedAt   time.Time `json:"generatedAt"`
}
