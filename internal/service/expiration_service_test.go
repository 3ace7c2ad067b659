package service

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	vouchers := new(MockExpirationRepository)
	promotions := new(MockExpirationRepository)
	svc := NewExpirationService(vouchers, promotions)
	now := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	vouchers.On("DeactivateExpired", ctx, now).Return(&model.SweepResult{Expired: 3, Deactivated: 3}, nil)
	promotions.On("DeactivateExpired", ctx, now).Return(&model.SweepResult{}, nil)

	results, err := svc.SweepExpired(ctx)

	assert.NoError(t, err)
	assert.Equal(t, int64(3), results["vouchers"].Deactivated)
	assert.Equal(t, 0, results["promotions"].Expired)
}

func TestSweepExpiredContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	vouchers := new(MockExpirationRepository)
	promotions := new(MockExpirationRepository)
	svc := NewExpirationService(vouchers, promotions)
	now := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	dbErr := stderrors.New("connection reset")
	vouchers.On("DeactivateExpired", ctx, now).Return(nil, dbErr)
	promotions.On("DeactivateExpired", ctx, now).Return(&model.SweepResult{Expired: 1, Deactivated: 1}, nil)

	results, err := svc.SweepExpired(ctx)

	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "vouchers")
	assert.NotContains(t, results, "vouchers")
	assert.Equal(t, int64(1), results["promotions"].Deactivated)
}
