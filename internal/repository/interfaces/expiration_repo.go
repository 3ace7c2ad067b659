package interfaces

import (
	"context"
	"fashion-backend/internal/model"
	"time"
)

// ExpirationRepository 优惠券与促销的过期清理
type ExpirationRepository interface {
	DeactivateExpired(ctx context.Context, now time.Time) (*model.SweepResult, error)
}
