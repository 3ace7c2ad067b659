package interfaces

import (
	"context"
	"fashion-backend/internal/model"
	"time"
)

type ReportRepository interface {
	GetDailySummary(ctx context.Context, from, to time.Time) (*model.DailySummary, error)
	GetOrdersCreatedBetween(ctx context.Context, from, to time.Time) ([]*model.Order, error)
}
