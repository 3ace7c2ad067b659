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

const paymentColumns = `id, order_id, COALESCE(stripe_session_id, ''), COALESCE(stripe_payment_intent_id, ''),
	amount, currency, status, COALESCE(checkout_url, ''), created_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db}
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.StripeSessionID, &p.StripePaymentIntentID,
		&p.Amount, &p.Currency, &p.Status, &p.CheckoutURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, payment *model.Payment) error {
	util.Logger.Info("开始创建支付记录",
		zap.Int("order_id", payment.OrderID),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", payment.Status))

	payment.CreatedAt = time.Now()
	payment.UpdatedAt = payment.CreatedAt

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (order_id, amount, currency, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		payment.OrderID, payment.Amount, payment.Currency, payment.Status, payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		util.Logger.Error("创建支付记录失败",
			zap.Error(err),
			zap.String("error_type", fmt.Sprintf("%T", err)))
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		util.Logger.Error("获取支付记录ID失败", zap.Error(err))
		return err
	}
	payment.ID = int(id)
	return nil
}

func (r *PaymentRepository) UpdateCheckoutSession(ctx context.Context, paymentID int, sessionID, checkoutURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET stripe_session_id = ?, checkout_url = ?, updated_at = NOW()
		WHERE id = ?`, sessionID, checkoutURL, paymentID)
	return err
}

func (r *PaymentRepository) GetPaymentByID(ctx context.Context, id int) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetLatestPaymentByOrderID 以最大ID作为订单的最新支付
func (r *PaymentRepository) GetLatestPaymentByOrderID(ctx context.Context, orderID int) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = ? ORDER BY id DESC LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest payment: %w", err)
	}
	return p, nil
}

// CompletePayment 返回 false 表示支付记录此前已是成功或已退款状态，本次未做任何修改
func (r *PaymentRepository) CompletePayment(ctx context.Context, paymentID int, paymentIntentID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		util.Logger.Error("开始事务失败", zap.Error(err))
		return false, err
	}
	defer tx.Rollback()

	var orderID int
	var status string
	if err := tx.QueryRowContext(ctx, `SELECT order_id, status FROM payments WHERE id = ? FOR UPDATE`, paymentID).Scan(&orderID, &status); err != nil {
		return false, fmt.Errorf("failed to lock payment: %w", err)
	}
	if status == model.PaymentRecordSucceeded || status == model.PaymentRecordRefunded {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = ?, stripe_payment_intent_id = ?, updated_at = NOW()
		WHERE id = ?`, model.PaymentRecordSucceeded, paymentIntentID, paymentID); err != nil {
		return false, fmt.Errorf("failed to update payment: %w", err)
	}

	// 终态订单（如支付前已取消）保持不变，由调用方退款
	guard, guardArgs := notTerminal("status")
	args := append([]interface{}{model.PaymentStatusPaid, model.OrderStatusPending, model.OrderStatusConfirmed, orderID}, guardArgs...)
	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = ?,
			status = CASE WHEN status = ? THEN ? ELSE status END,
			updated_at = NOW()
		WHERE id = ? AND `+guard, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update order payment status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		util.Logger.Error("提交事务失败", zap.Error(err))
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		util.Logger.Warn("订单已处于终态，支付成功未更新订单",
			zap.Int("payment_id", paymentID),
			zap.Int("order_id", orderID))
		return true, nil
	}
	util.Logger.Info("支付完成",
		zap.Int("payment_id", paymentID),
		zap.Int("order_id", orderID))
	return true, nil
}

func (r *PaymentRepository) MarkPaymentRefunded(ctx context.Context, paymentID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ?`,
		model.PaymentRecordRefunded, paymentID)
	if err != nil {
		return fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FailPayment(ctx context.Context, paymentID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var orderID int
	if err := tx.QueryRowContext(ctx, `SELECT order_id FROM payments WHERE id = ? FOR UPDATE`, paymentID).Scan(&orderID); err != nil {
		return fmt.Errorf("failed to lock payment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = ?, updated_at = NOW() WHERE id = ?`,
		model.PaymentRecordFailed, paymentID); err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	// 已支付的订单不因旧会话失败而回退
	guard, guardArgs := notTerminal("status")
	args := append([]interface{}{model.PaymentStatusFailed, orderID, model.PaymentStatusUnpaid}, guardArgs...)
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = ?, updated_at = NOW()
		WHERE id = ? AND payment_status = ? AND `+guard, args...); err != nil {
		return fmt.Errorf("failed to update order payment status: %w", err)
	}
	return tx.Commit()
}
