package payment

import (
	"bytes"
	"context"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/model"
	"fashion-backend/internal/service"
	"fashion-backend/internal/util"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) CreateCheckoutSession(ctx context.Context, userID, orderID int) (*model.Payment, error) {
	args := m.Called(userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	args := m.Called(payload, signature)
	return args.Error(0)
}

type MockRefundService struct {
	mock.Mock
}

func (m *MockRefundService) CreateRefundRequest(ctx context.Context, userID int, req *service.CreateRefundRequest) (*model.RefundRequest, error) {
	args := m.Called(userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundService) UpdateRefundStatus(ctx context.Context, requestID, adminID int, req *service.UpdateRefundStatusRequest) (*model.RefundRequest, error) {
	args := m.Called(requestID, adminID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundService) GetRefundStatus(ctx context.Context, userID, orderID int) (*model.RefundRequest, error) {
	args := m.Called(userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundService) ListRefundRequests(ctx context.Context, status string, page, pageSize int) ([]*model.RefundRequest, int, error) {
	args := m.Called(status, page, pageSize)
	return args.Get(0).([]*model.RefundRequest), args.Int(1), args.Error(2)
}

func withUser(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	}
}

func TestWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockPaymentService)
	router := gin.New()
	router.POST("/webhook", NewPaymentHandler(svc).Webhook)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	svc.On("HandleWebhook", payload, "t=1,v1=abc").Return(nil)
	svc.On("HandleWebhook", payload, "t=1,v1=bad").Return(errors.New(errors.ErrBadRequest, "invalid webhook signature"))

	req, _ := http.NewRequest("POST", "/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req, _ = http.NewRequest("POST", "/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 缺少签名头时不调用服务
	req, _ = http.NewRequest("POST", "/webhook", bytes.NewReader(payload))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "HandleWebhook", 2)
}

func TestRequestRefundJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockRefundService)
	router := gin.New()
	router.POST("/orders/:id/refund", withUser(42), NewRefundHandler(svc).RequestRefund)

	svc.On("CreateRefundRequest", 42, mock.MatchedBy(func(r *service.CreateRefundRequest) bool {
		return r.OrderID == 100 && r.Reason == "damaged" && r.Amount == nil
	})).Return(&model.RefundRequest{ID: 7, OrderID: 100, RefundAmount: decimal.NewFromInt(500), Status: model.RefundStatusPending}, nil)

	req, _ := http.NewRequest("POST", "/orders/100/refund", bytes.NewBufferString(`{"reason":"damaged"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
	svc.AssertExpectations(t)
}

func TestRequestRefundMultipart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockRefundService)
	router := gin.New()
	router.POST("/orders/:id/refund", withUser(42), NewRefundHandler(svc).RequestRefund)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("reason", "wrong size")
	_ = mw.WriteField("amount", "120.50")
	fw, _ := mw.CreateFormFile("images", "photo.jpg")
	_, _ = fw.Write([]byte("jpeg-bytes"))
	_ = mw.Close()

	svc.On("CreateRefundRequest", 42, mock.MatchedBy(func(r *service.CreateRefundRequest) bool {
		return r.Reason == "wrong size" && r.Amount != nil && r.Amount.Equal(decimal.RequireFromString("120.5")) &&
			len(r.Images) == 1 && r.Images[0].Filename == "photo.jpg"
	})).Return(&model.RefundRequest{ID: 8, Status: model.RefundStatusPending}, nil)

	req, _ := http.NewRequest("POST", "/orders/100/refund", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateRefundStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	util.RegisterValidators()
	svc := new(MockRefundService)
	router := gin.New()
	router.PUT("/admin/refunds/:id/status", withUser(1), NewRefundHandler(svc).UpdateRefundStatus)

	admin := 1
	svc.On("UpdateRefundStatus", 7, 1, mock.MatchedBy(func(r *service.UpdateRefundStatusRequest) bool {
		return r.Status == "approved"
	})).Return(&model.RefundRequest{ID: 7, Status: model.RefundStatusCompleted, StripeRefundID: "re_abc", ProcessedBy: &admin}, nil)
	svc.On("UpdateRefundStatus", 8, 1, mock.Anything).
		Return(nil, errors.New(errors.ErrInvalidState, "refund request is already completed"))

	req, _ := http.NewRequest("PUT", "/admin/refunds/7/status", bytes.NewBufferString(`{"status":"approved"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "re_abc")

	req, _ = http.NewRequest("PUT", "/admin/refunds/8/status", bytes.NewBufferString(`{"status":"rejected"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	// completed 只能由系统设置
	req, _ = http.NewRequest("PUT", "/admin/refunds/7/status", bytes.NewBufferString(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "UpdateRefundStatus", 2)
}

func TestListRefundRequestsRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockRefundService)
	router := gin.New()
	router.GET("/admin/refunds", NewRefundHandler(svc).ListRefundRequests)

	svc.On("ListRefundRequests", "pending", 2, 10).Return([]*model.RefundRequest{{ID: 7}}, 11, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin/refunds?status=PENDING&page=2&page_size=10", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":11`)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/admin/refunds?status=lost", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
