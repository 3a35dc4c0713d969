package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/datamart-io/marketplace-api/internal/dto"
	"github.com/datamart-io/marketplace-api/internal/models"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
)

type entitlementStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	IncrementUploadCountBelow(ctx context.Context, id string, tier models.SubscriptionTier, limit int) (bool, error)
	IncrementUploadCount(ctx context.Context, id string, tier models.SubscriptionTier) (bool, error)
	DecrementUploadCount(ctx context.Context, id string) error
	SetSubscription(ctx context.Context, id string, tier models.SubscriptionTier) (bool, error)
}

// EntitlementService tracks seller subscription tiers and enforces upload
// quotas. Authorization and slot reservation happen as one conditional
// update, never a read-then-write.
type EntitlementService struct {
	repo      entitlementStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEntitlementService constructs the service.
func NewEntitlementService(repo entitlementStore, validate *validator.Validate, logger *zap.Logger) *EntitlementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntitlementService{repo: repo, validator: validate, logger: logger}
}

// ReserveUploadSlot authorizes an upload and reserves a quota slot in one
// step. Callers must release the slot if they fail before the dataset record
// exists.
func (s *EntitlementService) ReserveUploadSlot(ctx context.Context, sellerID string) error {
	seller, err := s.repo.FindByID(ctx, sellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seller")
	}
	if seller.SubscriptionTier == models.TierNone {
		return appErrors.ErrNoSubscription
	}

	limit, bounded := seller.SubscriptionTier.Quota()
	var reserved bool
	if bounded {
		reserved, err = s.repo.IncrementUploadCountBelow(ctx, sellerID, seller.SubscriptionTier, limit)
	} else {
		reserved, err = s.repo.IncrementUploadCount(ctx, sellerID, seller.SubscriptionTier)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve upload slot")
	}
	if !reserved {
		// The conditional update lost either to the quota or to a concurrent
		// tier change; both deny this upload.
		return appErrors.ErrQuotaExceeded
	}
	return nil
}

// ReleaseUploadSlot compensates a reservation whose upload never became a
// dataset record.
func (s *EntitlementService) ReleaseUploadSlot(ctx context.Context, sellerID string) {
	if err := s.repo.DecrementUploadCount(ctx, sellerID); err != nil {
		s.logger.Warn("failed to release upload slot", zap.Error(err), zap.String("seller_id", sellerID))
	}
}

// ChangeTier switches the seller to a new plan and resets the upload
// counter. Uploads already authorized are unaffected.
func (s *EntitlementService) ChangeTier(ctx context.Context, sellerID string, req dto.ChangeTierRequest) (*dto.SubscriptionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subscription tier")
	}
	tier := models.SubscriptionTier(req.Tier)
	if !tier.ValidPurchasable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid subscription tier")
	}

	updated, err := s.repo.SetSubscription(ctx, sellerID, tier)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subscription")
	}
	if !updated {
		return nil, appErrors.ErrNotFound
	}

	resp := &dto.SubscriptionResponse{Tier: tier, UploadCount: 0}
	if limit, bounded := tier.Quota(); bounded {
		resp.UploadLimit = &limit
	}
	return resp, nil
}
