package mysql

import (
	"context"
	"database/sql"
	"fashion-backend/internal/model"
	"fmt"
	"time"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db}
}

func (r *ReportRepository) GetDailySummary(ctx context.Context, from, to time.Time) (*model.DailySummary, error) {
	summary := &model.DailySummary{Day: from}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN payment_status IN (?, ?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN payment_status IN (?, ?, ?) THEN total ELSE 0 END), 0)
		FROM orders WHERE created_at >= ? AND created_at < ?`,
		model.PaymentStatusPaid, model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded,
		model.OrderStatusCancelled,
		model.PaymentStatusPaid, model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded,
		from, to,
	).Scan(&summary.TotalOrders, &summary.PaidOrders, &summary.CancelledOrders, &summary.Revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise orders: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN refund_amount ELSE 0 END), 0)
		FROM refund_requests WHERE created_at >= ? AND created_at < ?`,
		model.RefundStatusCompleted, from, to,
	).Scan(&summary.RefundRequests, &summary.RefundedAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise refunds: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM shipments WHERE status = ? AND updated_at >= ? AND updated_at < ?`,
		model.ShipmentStatusDelivered, from, to,
	).Scan(&summary.DeliveredShipment)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise shipments: %w", err)
	}

	return summary, nil
}

func (r *ReportRepository) GetOrdersCreatedBetween(ctx context.Context, from, to time.Time) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.created_at >= ? AND o.created_at < ? ORDER BY o.id`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
