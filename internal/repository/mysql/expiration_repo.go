package mysql

import (
	"context"
	"database/sql"
	"fashion-backend/internal/model"
	"fashion-backend/internal/util"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// expirationRepository 对带有 start_at/end_at/is_active 列的表做过期清理
type expirationRepository struct {
	db    *sql.DB
	table string
}

// NewVoucherExpirationRepository 优惠券过期清理
func NewVoucherExpirationRepository(db *sql.DB) *expirationRepository {
	return &expirationRepository{db: db, table: "vouchers"}
}

// NewPromotionExpirationRepository 促销过期清理
func NewPromotionExpirationRepository(db *sql.DB) *expirationRepository {
	return &expirationRepository{db: db, table: "promotions"}
}

// DeactivateExpired 统计并批量停用 end_at < now 且仍启用的记录。
// 统计与更新在同一事务内，但更新并非逐行比较交换，统计后被并发修改的行仍可能被停用。
func (r *expirationRepository) DeactivateExpired(ctx context.Context, now time.Time) (*model.SweepResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		util.Logger.Error("开始事务失败", zap.Error(err), zap.String("table", r.table))
		return nil, err
	}
	defer tx.Rollback()

	result := &model.SweepResult{}
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE is_active = TRUE AND end_at < ?`, r.table)
	if err := tx.QueryRowContext(ctx, countQuery, now).Scan(&result.Expired); err != nil {
		return nil, fmt.Errorf("failed to count expired %s: %w", r.table, err)
	}

	if result.Expired == 0 {
		return result, tx.Commit()
	}

	updateQuery := fmt.Sprintf(`UPDATE %s SET is_active = FALSE, updated_at = ? WHERE is_active = TRUE AND end_at < ?`, r.table)
	res, err := tx.ExecContext(ctx, updateQuery, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate expired %s: %w", r.table, err)
	}
	if result.Deactivated, err = res.RowsAffected(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
