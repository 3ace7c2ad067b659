package service

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/lock"
	"fashion-backend/internal/messaging"
	"fashion-backend/internal/model"
	"fashion-backend/internal/repository/interfaces"
	"fashion-backend/internal/util"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RefreshSummary 一次物流刷新的结果
type RefreshSummary struct {
	Total     int `json:"total"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

type ShipmentServiceInterface interface {
	CreateShipmentForOrder(ctx context.Context, order *model.Order) (*model.Shipment, error)
	RefreshTracking(ctx context.Context, shipmentID int) (*model.Shipment, error)
	RefreshActiveShipments(ctx context.Context) (*RefreshSummary, error)
	GetTracking(ctx context.Context, userID, orderID int) (*model.Shipment, error)
}

type ShipmentService struct {
	shipmentRepo interfaces.ShipmentRepository
	orderRepo    interfaces.OrderRepository
	carriers     CarrierResolver
	locker       lock.Locker
	publisher    messaging.Publisher
}

func NewShipmentService(
	shipmentRepo interfaces.ShipmentRepository,
	orderRepo interfaces.OrderRepository,
	carriers CarrierResolver,
	locker lock.Locker,
	publisher messaging.Publisher,
) *ShipmentService {
	return &ShipmentService{
		shipmentRepo: shipmentRepo,
		orderRepo:    orderRepo,
		carriers:     carriers,
		locker:       locker,
		publisher:    publisher,
	}
}

var _ ShipmentServiceInterface = (*ShipmentService)(nil)

// CreateShipmentForOrder 在承运商下单并保存发货记录，已存在时直接返回
func (s *ShipmentService) CreateShipmentForOrder(ctx context.Context, order *model.Order) (*model.Shipment, error) {
	unlock, err := s.locker.Acquire(ctx, fmt.Sprintf("shipment:order:%d", order.ID), time.Minute)
	if err != nil {
		if stderrors.Is(err, lock.ErrLockBusy) {
			return nil, errors.New(errors.ErrResourceConflict, "shipment creation already in progress")
		}
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "failed to acquire shipment lock", err)
	}
	defer unlock()

	existing, err := s.shipmentRepo.GetShipmentByOrderID(ctx, order.ID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load shipment", err)
	}
	if existing != nil {
		util.Logger.Info("订单已存在发货记录", zap.Int("order_id", order.ID), zap.Int("shipment_id", existing.ID))
		return existing, nil
	}

	svc, err := s.carriers.Resolve(order.Carrier)
	if err != nil {
		return nil, err
	}

	shipment := &model.Shipment{
		OrderID: order.ID,
		Carrier: svc.Name(),
		Status:  model.ShipmentStatusPending,
	}
	trackingNumber, err := svc.CreateShipment(ctx, shipment, order)
	if err != nil {
		util.Logger.Error("承运商创建运单失败",
			zap.Error(err),
			zap.Int("order_id", order.ID),
			zap.String("carrier", svc.Name()))
		return nil, err
	}
	shipment.TrackingNumber = trackingNumber

	if err := s.shipmentRepo.CreateShipment(ctx, shipment); err != nil {
		util.Logger.Error("保存发货记录失败",
			zap.Error(err),
			zap.Int("order_id", order.ID),
			zap.String("tracking_number", trackingNumber))
		return nil, errors.Wrap(errors.ErrDatabase, "failed to save shipment", err)
	}

	util.Logger.Info("发货记录创建成功",
		zap.Int("order_id", order.ID),
		zap.Int("shipment_id", shipment.ID),
		zap.String("carrier", shipment.Carrier),
		zap.String("tracking_number", trackingNumber))
	return shipment, nil
}

// RefreshTracking 刷新单个运单
func (s *ShipmentService) RefreshTracking(ctx context.Context, shipmentID int) (*model.Shipment, error) {
	shipment, err := s.shipmentRepo.GetShipmentByID(ctx, shipmentID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load shipment", err)
	}
	if shipment == nil {
		return nil, errors.New(errors.ErrShipmentNotFound, "shipment not found")
	}
	if err := s.refresh(ctx, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

// RefreshActiveShipments 依次刷新所有未完结的运单，单个失败不影响其余运单
func (s *ShipmentService) RefreshActiveShipments(ctx context.Context) (*RefreshSummary, error) {
	shipments, err := s.shipmentRepo.GetShipmentsByStatuses(ctx, model.ActiveShipmentStatuses)
	if err != nil {
		util.Logger.Error("查询待刷新运单失败", zap.Error(err))
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load active shipments", err)
	}

	summary := &RefreshSummary{Total: len(shipments)}
	if len(shipments) == 0 {
		util.Logger.Debug("没有需要刷新的运单")
		return summary, nil
	}

	for _, shipment := range shipments {
		if err := s.refresh(ctx, shipment); err != nil {
			summary.Failed++
			util.Logger.Warn("刷新运单失败",
				zap.Error(err),
				zap.Int("shipment_id", shipment.ID),
				zap.String("carrier", shipment.Carrier))
			continue
		}
		summary.Refreshed++
	}

	util.Logger.Info("物流刷新完成",
		zap.Int("total", summary.Total),
		zap.Int("refreshed", summary.Refreshed),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *ShipmentService) refresh(ctx context.Context, shipment *model.Shipment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while refreshing shipment %d: %v", shipment.ID, r)
		}
	}()

	if shipment.TrackingNumber == "" {
		return errors.New(errors.ErrInvalidState, "shipment has no tracking number")
	}
	svc, err := s.carriers.Resolve(shipment.Carrier)
	if err != nil {
		return err
	}
	status, err := svc.GetTrackingStatus(ctx, shipment.TrackingNumber)
	if err != nil {
		return err
	}

	known, err := s.shipmentRepo.GetTrackingEvents(ctx, shipment.ID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to load tracking events", err)
	}
	seen := make(map[string]bool, len(known))
	for _, e := range known {
		seen[e.Key()] = true
	}
	var fresh []*model.TrackingEvent
	for _, e := range status.Events {
		if seen[e.Key()] {
			continue
		}
		seen[e.Key()] = true
		e.ShipmentID = shipment.ID
		fresh = append(fresh, e)
	}

	previous := shipment.Status
	newStatus := previous
	if status.Status != "" {
		newStatus = status.Status
	}
	newLocation := shipment.CurrentLocation
	if status.Location != "" {
		newLocation = status.Location
	}
	if len(fresh) == 0 && newStatus == previous && newLocation == shipment.CurrentLocation {
		shipment.Events = known
		return nil
	}

	shipment.Status = newStatus
	shipment.CurrentLocation = newLocation
	if err := s.shipmentRepo.SaveTrackingUpdate(ctx, shipment, fresh); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to save tracking update", err)
	}
	shipment.Events = append(known, fresh...)

	util.Logger.Info("运单已更新",
		zap.Int("shipment_id", shipment.ID),
		zap.String("from", previous),
		zap.String("to", newStatus),
		zap.Int("new_events", len(fresh)))

	if newStatus != previous {
		s.propagateToOrder(ctx, shipment)
		s.publish(ctx, messaging.TopicShipmentStatusChanged, fmt.Sprint(shipment.OrderID), map[string]interface{}{
			"shipment_id":     shipment.ID,
			"order_id":        shipment.OrderID,
			"tracking_number": shipment.TrackingNumber,
			"from":            previous,
			"to":              newStatus,
			"location":        newLocation,
		})
	}
	return nil
}

// propagateToOrder 物流状态同步到订单；退回的包裹保留订单状态，等待退款流程处理
func (s *ShipmentService) propagateToOrder(ctx context.Context, shipment *model.Shipment) {
	var orderStatus string
	switch shipment.Status {
	case model.ShipmentStatusShipped:
		orderStatus = model.OrderStatusShipped
	case model.ShipmentStatusDelivered:
		orderStatus = model.OrderStatusDelivered
	case model.ShipmentStatusReturned:
		util.Logger.Warn("包裹已退回", zap.Int("order_id", shipment.OrderID), zap.Int("shipment_id", shipment.ID))
		return
	default:
		return
	}

	updated, err := s.orderRepo.UpdateOrderStatus(ctx, shipment.OrderID, orderStatus)
	if err != nil {
		util.Logger.Error("同步订单状态失败", zap.Error(err), zap.Int("order_id", shipment.OrderID))
		return
	}
	if !updated {
		util.Logger.Info("订单已处于终态，跳过状态同步", zap.Int("order_id", shipment.OrderID))
	}
}

func (s *ShipmentService) publish(ctx context.Context, topic, key string, data interface{}) {
	if err := s.publisher.PublishEvent(ctx, topic, key, messaging.NewEvent(topic, data)); err != nil {
		util.Logger.Error("发布事件失败", zap.Error(err), zap.String("topic", topic))
	}
}

// GetTracking 用户查询自己订单的物流轨迹
func (s *ShipmentService) GetTracking(ctx context.Context, userID, orderID int) (*model.Shipment, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load order", err)
	}
	if order == nil || order.UserID != userID {
		return nil, errors.New(errors.ErrOrderNotFound, "order not found")
	}

	shipment, err := s.shipmentRepo.GetShipmentByOrderID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load shipment", err)
	}
	if shipment == nil {
		return nil, errors.New(errors.ErrShipmentNotFound, "order has not been shipped yet")
	}

	events, err := s.shipmentRepo.GetTrackingEvents(ctx, shipment.ID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load tracking events", err)
	}
	shipment.Events = events
	return shipment, nil
}
