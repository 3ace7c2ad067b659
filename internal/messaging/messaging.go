package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// 领域事件主题
const (
	TopicOrderPaid             = "order.paid"
	TopicShipmentStatusChanged = "shipment.status_changed"
	TopicRefundCompleted       = "refund.completed"
)

// Publisher 领域事件发布
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
	Close() error
}

// Event 事件信封
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func NewEvent(topic string, data any) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       topic,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
