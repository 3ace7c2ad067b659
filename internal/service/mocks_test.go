package service

import (
	"context"
	"fashion-backend/internal/carrier"
	"fashion-backend/internal/gateway"
	"fashion-backend/internal/model"
	"mime/multipart"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, id int) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetOrdersByUser(ctx context.Context, userID int) ([]*model.Order, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateOrderStatus(ctx context.Context, orderID int, status string) (bool, error) {
	args := m.Called(ctx, orderID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) CancelOrder(ctx context.Context, orderID int) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetProductDetail(ctx context.Context, id int) (*model.ProductDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductDetail), args.Error(1)
}

func (m *MockCatalogRepository) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Voucher), args.Error(1)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) CreatePayment(ctx context.Context, payment *model.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) UpdateCheckoutSession(ctx context.Context, paymentID int, sessionID, checkoutURL string) error {
	args := m.Called(ctx, paymentID, sessionID, checkoutURL)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetPaymentByID(ctx context.Context, id int) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetLatestPaymentByOrderID(ctx context.Context, orderID int) (*model.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepository) CompletePayment(ctx context.Context, paymentID int, paymentIntentID string) (bool, error) {
	args := m.Called(ctx, paymentID, paymentIntentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) MarkPaymentRefunded(ctx context.Context, paymentID int) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

func (m *MockPaymentRepository) FailPayment(ctx context.Context, paymentID int) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

type MockShipmentRepository struct {
	mock.Mock
}

func (m *MockShipmentRepository) CreateShipment(ctx context.Context, shipment *model.Shipment) error {
	args := m.Called(ctx, shipment)
	return args.Error(0)
}

func (m *MockShipmentRepository) GetShipmentByID(ctx context.Context, id int) (*model.Shipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetShipmentByOrderID(ctx context.Context, orderID int) (*model.Shipment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetShipmentsByStatuses(ctx context.Context, statuses []string) ([]*model.Shipment, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Shipment), args.Error(1)
}

func (m *MockShipmentRepository) GetTrackingEvents(ctx context.Context, shipmentID int) ([]*model.TrackingEvent, error) {
	args := m.Called(ctx, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TrackingEvent), args.Error(1)
}

func (m *MockShipmentRepository) SaveTrackingUpdate(ctx context.Context, shipment *model.Shipment, newEvents []*model.TrackingEvent) error {
	args := m.Called(ctx, shipment, newEvents)
	return args.Error(0)
}

type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) CreateRefundRequest(ctx context.Context, request *model.RefundRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockRefundRepository) GetRefundRequestByID(ctx context.Context, id int) (*model.RefundRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundRepository) GetLatestRefundRequestByOrder(ctx context.Context, orderID int) (*model.RefundRequest, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefundRequest), args.Error(1)
}

func (m *MockRefundRepository) ListRefundRequests(ctx context.Context, status string, page, pageSize int) ([]*model.RefundRequest, int, error) {
	args := m.Called(ctx, status, page, pageSize)
	return args.Get(0).([]*model.RefundRequest), args.Int(1), args.Error(2)
}

func (m *MockRefundRepository) TransitionRefundStatus(ctx context.Context, id int, from, to string, adminID int, note string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, from, to, adminID, note, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRefundRepository) CompleteRefund(ctx context.Context, request *model.RefundRequest, orderStatus, paymentStatus string) error {
	args := m.Called(ctx, request, orderStatus, paymentStatus)
	return args.Error(0)
}

type MockExpirationRepository struct {
	mock.Mock
}

func (m *MockExpirationRepository) DeactivateExpired(ctx context.Context, now time.Time) (*model.SweepResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SweepResult), args.Error(1)
}

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) GetDailySummary(ctx context.Context, from, to time.Time) (*model.DailySummary, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DailySummary), args.Error(1)
}

func (m *MockReportRepository) GetOrdersCreatedBetween(ctx context.Context, from, to time.Time) ([]*model.Order, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Order), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSession), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, req *gateway.RefundRequest) (*gateway.Refund, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Refund), args.Error(1)
}

func (m *MockGateway) ParseWebhookEvent(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.WebhookEvent), args.Error(1)
}

// MockCarrier 实现 carrier.Service
type MockCarrier struct {
	mock.Mock
	name string
}

func (m *MockCarrier) Name() string { return m.name }

func (m *MockCarrier) Supports(carrierName string) bool { return carrier.NormalizeName(carrierName) == m.name }

func (m *MockCarrier) CreateShipment(ctx context.Context, shipment *model.Shipment, order *model.Order) (string, error) {
	args := m.Called(ctx, shipment, order)
	return args.String(0), args.Error(1)
}

func (m *MockCarrier) GetTrackingStatus(ctx context.Context, trackingNumber string) (*model.TrackingStatus, error) {
	args := m.Called(ctx, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TrackingStatus), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error { return nil }

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) UploadFile(ctx context.Context, file *multipart.FileHeader, key string) (string, error) {
	args := m.Called(ctx, file, key)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(to, subject, htmlBody string, attachments ...Attachment) error {
	args := m.Called(to, subject, htmlBody, attachments)
	return args.Error(0)
}

func newFactory(services ...carrier.Service) *carrier.Factory {
	f, err := carrier.NewFactory(services...)
	if err != nil {
		panic(err)
	}
	return f
}
