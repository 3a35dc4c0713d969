package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datamart-io/marketplace-api/internal/dto"
	"github.com/datamart-io/marketplace-api/internal/service"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
	"github.com/datamart-io/marketplace-api/pkg/response"
)

type sellerService interface {
	SellerStats(ctx context.Context, sellerID string) (*dto.SellerStatsResponse, error)
	ExportStatement(ctx context.Context, sellerID string, format service.ExportFormat) (*service.StatementExport, error)
}

// SellerHandler exposes seller analytics endpoints.
type SellerHandler struct {
	service           sellerService
	statementsEnabled bool
}

// NewSellerHandler constructs the handler.
func NewSellerHandler(service sellerService, statementsEnabled bool) *SellerHandler {
	return &SellerHandler{service: service, statementsEnabled: statementsEnabled}
}

// Stats godoc
// @Summary Seller revenue and catalogue stats
// @Tags Sellers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sellers/stats [get]
func (h *SellerHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.SellerStats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Statement godoc
// @Summary Export the seller's sales statement
// @Tags Sellers
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /sellers/statement [get]
func (h *SellerHandler) Statement(c *gin.Context) {
	if !h.statementsEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "statements are disabled"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv")))
	statement, err := h.service.ExportStatement(c.Request.Context(), claims.UserID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", statement.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, statement.ContentType, statement.Content)
}
