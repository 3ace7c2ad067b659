package service

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/model"
	"fashion-backend/internal/repository/interfaces"
	"fashion-backend/internal/util"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type ExpirationServiceInterface interface {
	SweepExpired(ctx context.Context) (map[string]*model.SweepResult, error)
}

type expirationTarget struct {
	name string
	repo interfaces.ExpirationRepository
}

// ExpirationService 停用已过期的优惠券与促销
type ExpirationService struct {
	targets []expirationTarget
	now     func() time.Time
}

func NewExpirationService(vouchers, promotions interfaces.ExpirationRepository) *ExpirationService {
	return &ExpirationService{
		targets: []expirationTarget{
			{name: "vouchers", repo: vouchers},
			{name: "promotions", repo: promotions},
		},
		now: time.Now,
	}
}

var _ ExpirationServiceInterface = (*ExpirationService)(nil)

// SweepExpired 依次清理各类记录，一类失败不影响另一类
func (s *ExpirationService) SweepExpired(ctx context.Context) (map[string]*model.SweepResult, error) {
	now := s.now()
	results := make(map[string]*model.SweepResult, len(s.targets))
	var errs []error

	for _, t := range s.targets {
		result, err := t.repo.DeactivateExpired(ctx, now)
		if err != nil {
			util.Logger.Error("过期清理失败", zap.String("target", t.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
			continue
		}
		results[t.name] = result

		if result.Expired == 0 {
			util.Logger.Debug("没有需要停用的过期记录", zap.String("target", t.name))
			continue
		}
		util.Logger.Info("过期记录已停用",
			zap.String("target", t.name),
			zap.Int("expired", result.Expired),
			zap.Int64("deactivated", result.Deactivated))
	}
	return results, stderrors.Join(errs...)
}
