package service

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/lock"
	"fashion-backend/internal/messaging"
	"fashion-backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type shipmentFixture struct {
	shipments *MockShipmentRepository
	orders    *MockOrderRepository
	ghn       *MockCarrier
	ghtk      *MockCarrier
	publisher *MockPublisher
	locker    lock.Locker
	service   *ShipmentService
}

func newShipmentFixture() *shipmentFixture {
	f := &shipmentFixture{
		shipments: new(MockShipmentRepository),
		orders:    new(MockOrderRepository),
		ghn:       &MockCarrier{name: "ghn"},
		ghtk:      &MockCarrier{name: "ghtk"},
		publisher: new(MockPublisher),
		locker:    lock.NewMemoryLocker(),
	}
	f.service = NewShipmentService(f.shipments, f.orders, newFactory(f.ghn, f.ghtk), f.locker, f.publisher)
	return f
}

func trackingEvent(ts int64, status, desc string) *model.TrackingEvent {
	return &model.TrackingEvent{Status: status, Description: desc, OccurredAt: time.Unix(ts, 0).UTC()}
}

func TestCreateShipmentForOrder(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()
	order := &model.Order{ID: 100, Carrier: "GHN"}

	f.shipments.On("GetShipmentByOrderID", ctx, 100).Return(nil, nil)
	f.ghn.On("CreateShipment", ctx, mock.AnythingOfType("*model.Shipment"), order).Return("GHN123", nil)
	f.shipments.On("CreateShipment", ctx, mock.MatchedBy(func(s *model.Shipment) bool {
		return s.OrderID == 100 && s.Carrier == "ghn" && s.TrackingNumber == "GHN123" && s.Status == model.ShipmentStatusPending
	})).Return(nil)

	shipment, err := f.service.CreateShipmentForOrder(ctx, order)

	assert.NoError(t, err)
	assert.Equal(t, "GHN123", shipment.TrackingNumber)
	f.shipments.AssertExpectations(t)
	f.ghtk.AssertNotCalled(t, "CreateShipment", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateShipmentForOrderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()
	existing := &model.Shipment{ID: 5, OrderID: 100, Carrier: "ghn", TrackingNumber: "GHN123"}
	f.shipments.On("GetShipmentByOrderID", ctx, 100).Return(existing, nil)

	shipment, err := f.service.CreateShipmentForOrder(ctx, &model.Order{ID: 100, Carrier: "ghn"})

	assert.NoError(t, err)
	assert.Same(t, existing, shipment)
	f.ghn.AssertNotCalled(t, "CreateShipment", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateShipmentUnsupportedCarrier(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()
	f.shipments.On("GetShipmentByOrderID", ctx, 100).Return(nil, nil)

	_, err := f.service.CreateShipmentForOrder(ctx, &model.Order{ID: 100, Carrier: "dhl"})

	assert.True(t, errors.Is(err, errors.ErrUnsupportedCarrier))
	f.shipments.AssertNotCalled(t, "CreateShipment", mock.Anything, mock.Anything)
}

func TestCreateShipmentConcurrentCall(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()
	unlock, err := f.locker.Acquire(ctx, "shipment:order:100", time.Minute)
	assert.NoError(t, err)
	defer unlock()

	_, err = f.service.CreateShipmentForOrder(ctx, &model.Order{ID: 100, Carrier: "ghn"})

	assert.True(t, errors.Is(err, errors.ErrResourceConflict))
}

func TestRefreshActiveShipmentsIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()

	s1 := &model.Shipment{ID: 1, OrderID: 11, Carrier: "ghn", TrackingNumber: "A", Status: model.ShipmentStatusPending}
	s2 := &model.Shipment{ID: 2, OrderID: 12, Carrier: "ghtk", TrackingNumber: "B", Status: model.ShipmentStatusPending}
	s3 := &model.Shipment{ID: 3, OrderID: 13, Carrier: "ghn", TrackingNumber: "C", Status: model.ShipmentStatusShipped}
	f.shipments.On("GetShipmentsByStatuses", ctx, model.ActiveShipmentStatuses).Return([]*model.Shipment{s1, s2, s3}, nil)

	f.ghn.On("GetTrackingStatus", ctx, "A").Return(&model.TrackingStatus{
		Status:   model.ShipmentStatusShipped,
		Location: "Hanoi hub",
		Events:   []*model.TrackingEvent{trackingEvent(1000, "picked", "picked up")},
	}, nil)
	f.ghtk.On("GetTrackingStatus", ctx, "B").Return(nil, errors.New(errors.ErrExternal, "carrier timeout"))
	f.ghn.On("GetTrackingStatus", ctx, "C").Return(&model.TrackingStatus{
		Status: model.ShipmentStatusDelivered,
		Events: []*model.TrackingEvent{trackingEvent(2000, "delivered", "delivered")},
	}, nil)

	for _, id := range []int{1, 3} {
		f.shipments.On("GetTrackingEvents", ctx, id).Return([]*model.TrackingEvent{}, nil)
	}
	f.shipments.On("SaveTrackingUpdate", ctx, mock.Anything, mock.Anything).Return(nil)
	f.orders.On("UpdateOrderStatus", ctx, 11, model.OrderStatusShipped).Return(true, nil)
	f.orders.On("UpdateOrderStatus", ctx, 13, model.OrderStatusDelivered).Return(false, nil)
	f.publisher.On("PublishEvent", ctx, messaging.TopicShipmentStatusChanged, mock.Anything, mock.Anything).Return(nil)

	summary, err := f.service.RefreshActiveShipments(ctx)

	assert.NoError(t, err)
	assert.Equal(t, &RefreshSummary{Total: 3, Refreshed: 2, Failed: 1}, summary)
	assert.Equal(t, model.ShipmentStatusShipped, s1.Status)
	assert.Equal(t, "Hanoi hub", s1.CurrentLocation)
	assert.Equal(t, model.ShipmentStatusPending, s2.Status)
	assert.Equal(t, model.ShipmentStatusDelivered, s3.Status)
	f.orders.AssertExpectations(t)
	f.publisher.AssertNumberOfCalls(t, "PublishEvent", 2)
}

func TestRefreshRecoversFromCarrierPanic(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()

	s1 := &model.Shipment{ID: 1, OrderID: 11, Carrier: "ghn", TrackingNumber: "A", Status: model.ShipmentStatusPending}
	s2 := &model.Shipment{ID: 2, OrderID: 12, Carrier: "ghn", TrackingNumber: "B", Status: model.ShipmentStatusPending}
	f.shipments.On("GetShipmentsByStatuses", ctx, model.ActiveShipmentStatuses).Return([]*model.Shipment{s1, s2}, nil)
	f.ghn.On("GetTrackingStatus", ctx, "A").Run(func(mock.Arguments) { panic("bad payload") })
	f.ghn.On("GetTrackingStatus", ctx, "B").Return(&model.TrackingStatus{Status: model.ShipmentStatusPending}, nil)
	f.shipments.On("GetTrackingEvents", ctx, 2).Return([]*model.TrackingEvent{}, nil)

	summary, err := f.service.RefreshActiveShipments(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Refreshed)
	// 无变化时不写库
	f.shipments.AssertNotCalled(t, "SaveTrackingUpdate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshTrackingDedupesEvents(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()

	shipment := &model.Shipment{ID: 1, OrderID: 11, Carrier: "ghn", TrackingNumber: "A", Status: model.ShipmentStatusShipped}
	f.shipments.On("GetShipmentByID", ctx, 1).Return(shipment, nil)
	f.shipments.On("GetTrackingEvents", ctx, 1).Return([]*model.TrackingEvent{
		trackingEvent(1000, "picked", "picked up"),
	}, nil)
	f.ghn.On("GetTrackingStatus", ctx, "A").Return(&model.TrackingStatus{
		Status: model.ShipmentStatusShipped,
		Events: []*model.TrackingEvent{
			trackingEvent(1000, "picked", "picked up"),
			trackingEvent(1500, "transporting", "left hub"),
			trackingEvent(1500, "transporting", "left hub"),
		},
	}, nil)

	var saved []*model.TrackingEvent
	f.shipments.On("SaveTrackingUpdate", ctx, shipment, mock.Anything).
		Run(func(args mock.Arguments) {
			saved = args.Get(2).([]*model.TrackingEvent)
		}).Return(nil)

	result, err := f.service.RefreshTracking(ctx, 1)

	assert.NoError(t, err)
	if assert.Len(t, saved, 1) {
		assert.Equal(t, "left hub", saved[0].Description)
		assert.Equal(t, 1, saved[0].ShipmentID)
	}
	assert.Len(t, result.Events, 2)
	// 状态未变化，不同步订单也不发布事件
	f.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshReturnedShipmentKeepsOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()

	shipment := &model.Shipment{ID: 1, OrderID: 11, Carrier: "ghn", TrackingNumber: "A", Status: model.ShipmentStatusShipped}
	f.shipments.On("GetShipmentByID", ctx, 1).Return(shipment, nil)
	f.shipments.On("GetTrackingEvents", ctx, 1).Return([]*model.TrackingEvent{}, nil)
	f.ghn.On("GetTrackingStatus", ctx, "A").Return(&model.TrackingStatus{Status: model.ShipmentStatusReturned}, nil)
	f.shipments.On("SaveTrackingUpdate", ctx, shipment, mock.Anything).Return(nil)
	f.publisher.On("PublishEvent", ctx, messaging.TopicShipmentStatusChanged, "11", mock.Anything).Return(stderrors.New("broker down"))

	result, err := f.service.RefreshTracking(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusReturned, result.Status)
	f.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshUnknownCarrierStatusKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()

	shipment := &model.Shipment{ID: 1, OrderID: 11, Carrier: "ghn", TrackingNumber: "A", Status: model.ShipmentStatusShipped}
	f.shipments.On("GetShipmentByID", ctx, 1).Return(shipment, nil)
	f.shipments.On("GetTrackingEvents", ctx, 1).Return([]*model.TrackingEvent{}, nil)
	f.ghn.On("GetTrackingStatus", ctx, "A").Return(&model.TrackingStatus{
		Events: []*model.TrackingEvent{trackingEvent(3000, "lost_in_warehouse", "lost_in_warehouse")},
	}, nil)
	f.shipments.On("SaveTrackingUpdate", ctx, shipment, mock.Anything).Return(nil)

	result, err := f.service.RefreshTracking(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, model.ShipmentStatusShipped, result.Status)
	assert.Len(t, result.Events, 1)
	f.orders.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshTrackingNotFound(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()
	f.shipments.On("GetShipmentByID", ctx, 9).Return(nil, nil)

	_, err := f.service.RefreshTracking(ctx, 9)

	assert.True(t, errors.Is(err, errors.ErrShipmentNotFound))
}

func TestGetTracking(t *testing.T) {
	ctx := context.Background()
	f := newShipmentFixture()
	f.orders.On("GetOrderByID", ctx, 100).Return(&model.Order{ID: 100, UserID: 42}, nil)
	f.shipments.On("GetShipmentByOrderID", ctx, 100).Return(&model.Shipment{ID: 5, OrderID: 100}, nil)
	f.shipments.On("GetTrackingEvents", ctx, 5).Return([]*model.TrackingEvent{trackingEvent(1000, "picked", "picked up")}, nil)

	shipment, err := f.service.GetTracking(ctx, 42, 100)
	assert.NoError(t, err)
	assert.Len(t, shipment.Events, 1)

	_, err = f.service.GetTracking(ctx, 7, 100)
	assert.True(t, errors.Is(err, errors.ErrOrderNotFound))
}
