package model

import (
	"fmt"
	"time"
)

// 物流状态
const (
	ShipmentStatusPending    = "pending"
	ShipmentStatusConfirmed  = "confirmed"
	ShipmentStatusProcessing = "processing"
	ShipmentStatusShipped    = "shipped"
	ShipmentStatusDelivered  = "delivered"
	ShipmentStatusCancelled  = "cancelled"
	ShipmentStatusReturned   = "returned"
)

// ActiveShipmentStatuses 需要定时刷新物流信息的状态
var ActiveShipmentStatuses = []string{
	ShipmentStatusPending,
	ShipmentStatusConfirmed,
	ShipmentStatusProcessing,
	ShipmentStatusShipped,
}

type Shipment struct {
	ID              int              `json:"id"`
	OrderID         int              `json:"order_id"`
	Carrier         string           `json:"carrier"`
	TrackingNumber  string           `json:"tracking_number,omitempty"`
	Status          string           `json:"status"`
	CurrentLocation string           `json:"current_location,omitempty"`
	Events          []*TrackingEvent `json:"events,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TrackingEvent 物流轨迹，只追加不修改
type TrackingEvent struct {
	ID          int       `json:"id"`
	ShipmentID  int       `json:"shipment_id"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Key 用于判断承运商返回的轨迹是否已记录
func (e *TrackingEvent) Key() string {
	return fmt.Sprintf("%d|%s|%s", e.OccurredAt.UTC().Unix(), e.Status, e.Description)
}

// TrackingStatus 承运商返回的当前物流状态
type TrackingStatus struct {
	Status   string           `json:"status"`
	Location string           `json:"location"`
	Events   []*TrackingEvent `json:"events"`
}
