package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamart-io/marketplace-api/internal/middleware"
	"github.com/datamart-io/marketplace-api/internal/models"
	appErrors "github.com/datamart-io/marketplace-api/pkg/errors"
)

type purchaseServiceMock struct {
	purchaseResp *models.Purchase
	purchaseErr  error
	lastDataset  string
	listResp     []models.PurchaseDetail
}

func (m *purchaseServiceMock) Purchase(ctx context.Context, buyerID, datasetID string) (*models.Purchase, error) {
	m.lastDataset = datasetID
	return m.purchaseResp, m.purchaseErr
}

func (m *purchaseServiceMock) ListPurchases(ctx context.Context, buyerID string) ([]models.PurchaseDetail, error) {
	return m.listResp, nil
}

func buyerContext(w *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "buyer-1", Role: models.RoleBuyer})
	return c
}

func TestPurchaseHandlerPurchase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &purchaseServiceMock{purchaseResp: &models.Purchase{ID: "p-1", PricePaid: 20}}
	handler := NewPurchaseHandler(mockSvc)

	w := httptest.NewRecorder()
	c := buyerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/purchases/ds-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "datasetId", Value: "ds-1"}}

	handler.Purchase(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ds-1", mockSvc.lastDataset)
}

func TestPurchaseHandlerDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &purchaseServiceMock{purchaseErr: appErrors.ErrAlreadyPurchased}
	handler := NewPurchaseHandler(mockSvc)

	w := httptest.NewRecorder()
	c := buyerContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/purchases/ds-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "datasetId", Value: "ds-1"}}

	handler.Purchase(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestPurchaseHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &purchaseServiceMock{listResp: []models.PurchaseDetail{{Title: "Retail"}}}
	handler := NewPurchaseHandler(mockSvc)

	w := httptest.NewRecorder()
	c := buyerContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/purchases", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPurchaseHandlerUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPurchaseHandler(&purchaseServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/purchases", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
