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

const refundColumns = `id, order_id, user_id, reason, refund_amount, status,
	COALESCE(admin_note, ''), COALESCE(stripe_refund_id, ''), processed_by, processed_at,
	created_at, updated_at`

type RefundRepository struct {
	db *sql.DB
}

func NewRefundRepository(db *sql.DB) *RefundRepository {
	return &RefundRepository{db}
}

func scanRefund(row rowScanner) (*model.RefundRequest, error) {
	var req model.RefundRequest
	var processedBy sql.NullInt64
	var processedAt sql.NullTime
	err := row.Scan(&req.ID, &req.OrderID, &req.UserID, &req.Reason, &req.RefundAmount, &req.Status,
		&req.AdminNote, &req.StripeRefundID, &processedBy, &processedAt,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if processedBy.Valid {
		id := int(processedBy.Int64)
		req.ProcessedBy = &id
	}
	if processedAt.Valid {
		at := processedAt.Time
		req.ProcessedAt = &at
	}
	return &req, nil
}

func (r *RefundRepository) CreateRefundRequest(ctx context.Context, request *model.RefundRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now

	result, err := tx.ExecContext(ctx, `
		INSERT INTO refund_requests (order_id, user_id, reason, refund_amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		request.OrderID, request.UserID, request.Reason, request.RefundAmount, request.Status,
		request.CreatedAt, request.UpdatedAt)
	if err != nil {
		util.Logger.Error("创建退款申请失败", zap.Error(err), zap.Int("order_id", request.OrderID))
		return fmt.Errorf("failed to insert refund request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get refund request ID: %w", err)
	}
	request.ID = int(id)

	for _, url := range request.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO refund_request_images (refund_request_id, image_url) VALUES (?, ?)`,
			request.ID, url); err != nil {
			return fmt.Errorf("failed to insert refund image: %w", err)
		}
	}

	return tx.Commit()
}

func (r *RefundRepository) GetRefundRequestByID(ctx context.Context, id int) (*model.RefundRequest, error) {
	req, err := scanRefund(r.db.QueryRowContext(ctx, `SELECT `+refundColumns+` FROM refund_requests WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refund request: %w", err)
	}
	if req.Images, err = r.getImages(ctx, req.ID); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *RefundRepository) GetLatestRefundRequestByOrder(ctx context.Context, orderID int) (*model.RefundRequest, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE order_id = ? ORDER BY id DESC LIMIT 1`
	req, err := scanRefund(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refund status: %w", err)
	}
	if req.Images, err = r.getImages(ctx, req.ID); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *RefundRepository) getImages(ctx context.Context, requestID int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT image_url FROM refund_request_images WHERE refund_request_id = ? ORDER BY id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query refund images: %w", err)
	}
	defer rows.Close()

	var images []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		images = append(images, url)
	}
	return images, rows.Err()
}

func (r *RefundRepository) ListRefundRequests(ctx context.Context, status string, page, pageSize int) ([]*model.RefundRequest, int, error) {
	where := ""
	var args []interface{}
	if status != "" {
		where = " WHERE status = ?"
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refund_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count refund requests: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refundColumns+` FROM refund_requests`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, pageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query refund requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.RefundRequest
	for rows.Next() {
		req, err := scanRefund(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan refund request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, total, rows.Err()
}

func (r *RefundRepository) TransitionRefundStatus(ctx context.Context, id int, from, to string, adminID int, note string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = ?, admin_note = ?, processed_by = ?, processed_at = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		to, note, adminID, at, id, from)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

func (r *RefundRepository) CompleteRefund(ctx context.Context, request *model.RefundRequest, orderStatus, paymentStatus string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE refund_requests SET status = ?, stripe_refund_id = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`,
		model.RefundStatusCompleted, request.StripeRefundID, request.ID, model.RefundStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to complete refund request: %w", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return fmt.Errorf("refund request %d is no longer approved", request.ID)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, payment_status = ?, updated_at = NOW() WHERE id = ?`,
		orderStatus, paymentStatus, request.OrderID); err != nil {
		return fmt.Errorf("failed to update order after refund: %w", err)
	}

	if paymentStatus == model.PaymentStatusRefunded {
		if _, err := tx.ExecContext(ctx, `
			UPDATE payments SET status = ?, updated_at = NOW()
			WHERE order_id = ? AND status = ?`,
			model.PaymentRecordRefunded, request.OrderID, model.PaymentRecordSucceeded); err != nil {
			return fmt.Errorf("failed to update payment after refund: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		util.Logger.Error("提交事务失败", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	request.Status = model.RefundStatusCompleted
	return nil
}
