package models

import "time"

// UserRole represents the available marketplace roles.
type UserRole string

const (
	RoleBuyer  UserRole = "BUYER"
	RoleSeller UserRole = "SELLER"
)

// SubscriptionTier bounds how many datasets a seller may upload.
type SubscriptionTier string

const (
	TierNone       SubscriptionTier = "none"
	TierBasic      SubscriptionTier = "basic"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

var tierQuotas = map[SubscriptionTier]int{
	TierBasic: 5,
	TierPro:   20,
}

// ValidPurchasable reports whether the tier can be subscribed to.
func (t SubscriptionTier) ValidPurchasable() bool {
	switch t {
	case TierBasic, TierPro, TierEnterprise:
		return true
	default:
		return false
	}
}

// Quota returns the upload limit for the tier. bounded is false for the
// enterprise tier, which has no limit.
func (t SubscriptionTier) Quota() (limit int, bounded bool) {
	if t == TierEnterprise {
		return 0, false
	}
	limit, ok := tierQuotas[t]
	if !ok {
		return 0, true
	}
	return limit, true
}

// User represents an application user stored in the users table. Sellers
// carry their subscription state inline; buyers keep the zero values.
type User struct {
	ID               string           `db:"id" json:"id"`
	Email            string           `db:"email" json:"email"`
	FullName         string           `db:"full_name" json:"full_name"`
	Role             UserRole         `db:"role" json:"role"`
	SubscriptionTier SubscriptionTier `db:"subscription_tier" json:"subscription_tier"`
	UploadCount      int              `db:"upload_count" json:"upload_count"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}
