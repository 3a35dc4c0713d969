package dto

import "github.com/datamart-io/marketplace-api/internal/models"

// ChangeTierRequest selects a new subscription plan. Payment is a no-op
// confirmation in this service.
type ChangeTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=basic pro enterprise"`
}

// SubscriptionResponse reports the seller's entitlement state after a change.
type SubscriptionResponse struct {
	Tier        models.SubscriptionTier `json:"tier"`
	UploadCount int                     `json:"uploadCount"`
	UploadLimit *int                    `json:"uploadLimit,omitempty"`
}
