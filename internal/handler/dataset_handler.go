package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datamart-io/marketplace-api/internal/dto"
	"github.com/datamart-io/marketplace-api/internal/models"
	"github.com/datamart-io/marketplace-api/internal/service"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
	"github.com/datamart-io/marketplace-api/pkg/response"
)

type datasetService interface {
	CreateUpload(ctx context.Context, sellerID string, req dto.UploadDatasetRequest, upload *service.DatasetUpload) (*models.Dataset, error)
	ListMine(ctx context.Context, sellerID string) ([]models.Dataset, error)
	ListMarketplace(ctx context.Context, excludeIDs []string) ([]models.MarketplaceItem, error)
	SetListing(ctx context.Context, sellerID, datasetID string, req dto.UpdateListingRequest) (*models.Dataset, error)
	Preview(ctx context.Context, requesterID, datasetID string) (*dto.PreviewResponse, error)
	GetDownloadURL(ctx context.Context, requesterID, datasetID string) (*dto.DownloadURLResponse, error)
	Download(ctx context.Context, token string) (*service.DatasetDownload, error)
}

type purchasedLister interface {
	PurchasedDatasetIDs(ctx context.Context, buyerID string) ([]string, error)
}

// DatasetHandler manages dataset HTTP endpoints.
type DatasetHandler struct {
	service   datasetService
	purchases purchasedLister
}

// NewDatasetHandler constructs the handler.
func NewDatasetHandler(service datasetService, purchases purchasedLister) *DatasetHandler {
	return &DatasetHandler{service: service, purchases: purchases}
}

// Upload godoc
// @Summary Upload a CSV dataset for anonymization
// @Tags Datasets
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param price formData number true "Price"
// @Param category formData string false "Category"
// @Param file formData file true "CSV dataset"
// @Success 201 {object} response.Envelope
// @Router /datasets/upload [post]
func (h *DatasetHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UploadDatasetRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid dataset payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}

	upload := &service.DatasetUpload{
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     reader,
	}
	dataset, err := h.service.CreateUpload(c.Request.Context(), claims.UserID, req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, dataset, nil)
}

// ListMine godoc
// @Summary List the caller's datasets in every state
// @Tags Datasets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /datasets/mine [get]
func (h *DatasetHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	datasets, err := h.service.ListMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, datasets, nil)
}

// Marketplace godoc
// @Summary Browse listed anonymized datasets
// @Tags Marketplace
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /datasets/marketplace [get]
func (h *DatasetHandler) Marketplace(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var exclude []string
	if claims.Role == models.RoleBuyer && h.purchases != nil {
		ids, err := h.purchases.PurchasedDatasetIDs(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		exclude = ids
	}
	items, err := h.service.ListMarketplace(c.Request.Context(), exclude)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MarketplaceResponse{Datasets: items}, nil)
}

// UpdateListing godoc
// @Summary Toggle marketplace visibility for a dataset
// @Tags Datasets
// @Accept json
// @Produce json
// @Param id path string true "Dataset ID"
// @Param payload body dto.UpdateListingRequest true "Listing payload"
// @Success 200 {object} response.Envelope
// @Router /datasets/{id}/listing [patch]
func (h *DatasetHandler) UpdateListing(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "listed flag is required"))
		return
	}
	dataset, err := h.service.SetListing(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dataset, nil)
}

// Preview godoc
// @Summary Preview the first rows of an anonymized dataset
// @Tags Marketplace
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Router /datasets/{id}/preview [get]
func (h *DatasetHandler) Preview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	preview, err := h.service.Preview(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// DownloadURL godoc
// @Summary Get a signed URL for the anonymized artifact
// @Tags Datasets
// @Produce json
// @Param id path string true "Dataset ID"
// @Success 200 {object} response.Envelope
// @Router /datasets/{id}/download-url [get]
func (h *DatasetHandler) DownloadURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.GetDownloadURL(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download the anonymized artifact via signed token
// @Tags Datasets
// @Produce octet-stream
// @Param id path string true "Dataset ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /datasets/{id}/download [get]
func (h *DatasetHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.ContentType, result.File, nil)
}
