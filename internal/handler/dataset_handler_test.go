package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamart-io/marketplace-api/internal/dto"
	"github.com/datamart-io/marketplace-api/internal/middleware"
	"github.com/datamart-io/marketplace-api/internal/models"
	"github.com/datamart-io/marketplace-api/internal/service"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
)

type datasetServiceMock struct {
	createResp    *models.Dataset
	createErr     error
	createdUpload *service.DatasetUpload
	createdReq    dto.UploadDatasetRequest

	mineResp []models.Dataset

	marketResp    []models.MarketplaceItem
	marketErr     error
	marketExclude []string

	listingResp *models.Dataset
	listingErr  error

	previewResp *dto.PreviewResponse
	previewErr  error

	urlResp *dto.DownloadURLResponse
	urlErr  error
}

func (m *datasetServiceMock) CreateUpload(ctx context.Context, sellerID string, req dto.UploadDatasetRequest, upload *service.DatasetUpload) (*models.Dataset, error) {
	m.createdReq = req
	m.createdUpload = upload
	return m.createResp, m.createErr
}

func (m *datasetServiceMock) ListMine(ctx context.Context, sellerID string) ([]models.Dataset, error) {
	return m.mineResp, nil
}

func (m *datasetServiceMock) ListMarketplace(ctx context.Context, excludeIDs []string) ([]models.MarketplaceItem, error) {
	m.marketExclude = excludeIDs
	return m.marketResp, m.marketErr
}

func (m *datasetServiceMock) SetListing(ctx context.Context, sellerID, datasetID string, req dto.UpdateListingRequest) (*models.Dataset, error) {
	return m.listingResp, m.listingErr
}

func (m *datasetServiceMock) Preview(ctx context.Context, requesterID, datasetID string) (*dto.PreviewResponse, error) {
	return m.previewResp, m.previewErr
}

func (m *datasetServiceMock) GetDownloadURL(ctx context.Context, requesterID, datasetID string) (*dto.DownloadURLResponse, error) {
	return m.urlResp, m.urlErr
}

func (m *datasetServiceMock) Download(ctx context.Context, token string) (*service.DatasetDownload, error) {
	return nil, appErrors.ErrUnauthorized
}

type purchasedListerMock struct {
	ids    []string
	called bool
}

func (m *purchasedListerMock) PurchasedDatasetIDs(ctx context.Context, buyerID string) ([]string, error) {
	m.called = true
	return m.ids, nil
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func sellerContext(w *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "seller-1", Role: models.RoleSeller})
	return c
}

func TestDatasetHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &datasetServiceMock{createResp: &models.Dataset{ID: "ds-1", Status: models.StatusProcessing}}
	handler := NewDatasetHandler(mockSvc, &purchasedListerMock{})

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Retail",
		"description": "POS data",
		"price":       "19.99",
	}, "retail.csv", []byte("a,b\n1,2\n"))

	w := httptest.NewRecorder()
	c := sellerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/datasets/upload", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.createdUpload)
	assert.Equal(t, "retail.csv", mockSvc.createdUpload.Filename)
	assert.Equal(t, "Retail", mockSvc.createdReq.Title)
	require.NotNil(t, mockSvc.createdReq.Price)
	assert.Equal(t, 19.99, *mockSvc.createdReq.Price)
}

func TestDatasetHandlerUploadMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&datasetServiceMock{}, &purchasedListerMock{})

	body, contentType := multipartUpload(t, map[string]string{"title": "Retail"}, "", nil)

	w := httptest.NewRecorder()
	c := sellerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/datasets/upload", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Upload(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDatasetHandlerUploadQuotaError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &datasetServiceMock{createErr: appErrors.ErrQuotaExceeded}
	handler := NewDatasetHandler(mockSvc, &purchasedListerMock{})

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Retail",
		"description": "POS data",
		"price":       "19.99",
	}, "retail.csv", []byte("a\n1\n"))

	w := httptest.NewRecorder()
	c := sellerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/datasets/upload", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req

	handler.Upload(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestDatasetHandlerMarketplaceExcludesBuyerPurchases(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &datasetServiceMock{marketResp: []models.MarketplaceItem{}}
	lister := &purchasedListerMock{ids: []string{"ds-1"}}
	handler := NewDatasetHandler(mockSvc, lister)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/datasets/marketplace", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "buyer-1", Role: models.RoleBuyer})

	handler.Marketplace(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, lister.called)
	assert.Equal(t, []string{"ds-1"}, mockSvc.marketExclude)
}

func TestDatasetHandlerMarketplaceSellerSeesAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &datasetServiceMock{}
	lister := &purchasedListerMock{ids: []string{"ds-1"}}
	handler := NewDatasetHandler(mockSvc, lister)

	w := httptest.NewRecorder()
	c := sellerContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/datasets/marketplace", nil)
	c.Request = req

	handler.Marketplace(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, lister.called)
	assert.Nil(t, mockSvc.marketExclude)
}

func TestDatasetHandlerUpdateListingInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&datasetServiceMock{}, &purchasedListerMock{})

	w := httptest.NewRecorder()
	c := sellerContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/datasets/ds-1/listing", bytes.NewBufferString(`{"listed":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}

	handler.UpdateListing(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDatasetHandlerUpdateListingConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &datasetServiceMock{listingErr: appErrors.ErrInvalidState}
	handler := NewDatasetHandler(mockSvc, &purchasedListerMock{})

	payload, _ := json.Marshal(map[string]bool{"listed": true})
	w := httptest.NewRecorder()
	c := sellerContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/datasets/ds-1/listing", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}

	handler.UpdateListing(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDatasetHandlerPreview(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &datasetServiceMock{previewResp: &dto.PreviewResponse{Headers: []string{"name"}}}
	handler := NewDatasetHandler(mockSvc, &purchasedListerMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/datasets/ds-1/preview", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "buyer-1", Role: models.RoleBuyer})

	handler.Preview(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDatasetHandlerDownloadMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&datasetServiceMock{}, &purchasedListerMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/datasets/ds-1/download", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}

	handler.Download(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDatasetHandlerUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatasetHandler(&datasetServiceMock{}, &purchasedListerMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/datasets/mine", nil)
	c.Request = req

	handler.ListMine(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
