package interfaces

import (
	"context"
	"fashion-backend/internal/model"
)

type ShipmentRepository interface {
	// CreateShipment 写入发货记录并将订单推进到 processing
	CreateShipment(ctx context.Context, shipment *model.Shipment) error
	GetShipmentByID(ctx context.Context, id int) (*model.Shipment, error)
	GetShipmentByOrderID(ctx context.Context, orderID int) (*model.Shipment, error)
	GetShipmentsByStatuses(ctx context.Context, statuses []string) ([]*model.Shipment, error)
	GetTrackingEvents(ctx context.Context, shipmentID int) ([]*model.TrackingEvent, error)
	// SaveTrackingUpdate 追加新轨迹并更新物流快照
	SaveTrackingUpdate(ctx context.Context, shipment *model.Shipment, newEvents []*model.TrackingEvent) error
}
