package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datamart-io/marketplace-api/internal/dto"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
	"github.com/datamart-io/marketplace-api/pkg/response"
)

type subscriptionService interface {
	ChangeTier(ctx context.Context, sellerID string, req dto.ChangeTierRequest) (*dto.SubscriptionResponse, error)
}

// SubscriptionHandler manages seller subscription endpoints.
type SubscriptionHandler struct {
	service subscriptionService
}

// NewSubscriptionHandler constructs the handler.
func NewSubscriptionHandler(service subscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{service: service}
}

// Change godoc
// @Summary Change the caller's subscription tier
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param payload body dto.ChangeTierRequest true "Tier payload"
// @Success 200 {object} response.Envelope
// @Router /subscriptions [post]
func (h *SubscriptionHandler) Change(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ChangeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "tier is required"))
		return
	}
	result, err := h.service.ChangeTier(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
