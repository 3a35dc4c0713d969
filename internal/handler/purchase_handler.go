package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datamart-io/marketplace-api/internal/models"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
	"github.com/datamart-io/marketplace-api/pkg/response"
)

type purchaseService interface {
	Purchase(ctx context.Context, buyerID, datasetID string) (*models.Purchase, error)
	ListPurchases(ctx context.Context, buyerID string) ([]models.PurchaseDetail, error)
}

// PurchaseHandler manages purchase HTTP endpoints.
type PurchaseHandler struct {
	service purchaseService
}

// NewPurchaseHandler constructs the handler.
func NewPurchaseHandler(service purchaseService) *PurchaseHandler {
	return &PurchaseHandler{service: service}
}

// Purchase godoc
// @Summary Purchase a listed dataset
// @Tags Purchases
// @Produce json
// @Param datasetId path string true "Dataset ID"
// @Success 201 {object} response.Envelope
// @Router /purchases/{datasetId} [post]
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	purchase, err := h.service.Purchase(c.Request.Context(), claims.UserID, c.Param("datasetId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, purchase, nil)
}

// List godoc
// @Summary List the caller's purchases
// @Tags Purchases
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /purchases [get]
func (h *PurchaseHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	purchases, err := h.service.ListPurchases(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, purchases, nil)
}
