package dto

// SellerStatsResponse summarises revenue and catalogue size for a seller.
type SellerStatsResponse struct {
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalDatasets int     `json:"totalDatasets"`
}
