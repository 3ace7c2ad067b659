package mysql

import (
	"context"
	"database/sql"
	"fashion-backend/internal/model"
	"fashion-backend/internal/repository/interfaces"
	"fashion-backend/internal/util"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const orderColumns = `o.id, o.order_number, o.user_id, o.subtotal, o.discount, o.shipping_fee, o.total,
	o.currency, o.status, o.payment_status, o.carrier, o.voucher_id,
	o.receiver_name, o.phone, o.province, o.district, o.ward, o.detail_address,
	o.created_at, o.updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var order model.Order
	var voucherID sql.NullInt64
	addr := &order.ShippingAddress
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.Subtotal, &order.Discount,
		&order.ShippingFee, &order.Total, &order.Currency, &order.Status, &order.PaymentStatus,
		&order.Carrier, &voucherID,
		&addr.ReceiverName, &addr.Phone, &addr.Province, &addr.District, &addr.Ward, &addr.DetailAddress,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if voucherID.Valid {
		id := int(voucherID.Int64)
		order.VoucherID = &id
	}
	return &order, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	util.Logger.Info("开始创建订单",
		zap.Int("user_id", order.UserID),
		zap.String("total", order.Total.String()),
		zap.Int("items", len(order.Items)))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		util.Logger.Error("开始事务失败", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	if order.VoucherID != nil {
		result, err := tx.ExecContext(ctx, `
			UPDATE vouchers SET used_count = used_count + 1
			WHERE id = ? AND is_active = TRUE AND (usage_limit = 0 OR used_count < usage_limit)`,
			*order.VoucherID)
		if err != nil {
			return fmt.Errorf("failed to reserve voucher: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return interfaces.ErrVoucherExhausted
		}
	}

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	addr := order.ShippingAddress

	// 先插入订单获取ID
	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			order_number, user_id, subtotal, discount, shipping_fee, total, currency,
			status, payment_status, carrier, voucher_id,
			receiver_name, phone, province, district, ward, detail_address,
			created_at, updated_at
		) VALUES ('TEMP', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.UserID, order.Subtotal, order.Discount, order.ShippingFee, order.Total, order.Currency,
		order.Status, order.PaymentStatus, order.Carrier, order.VoucherID,
		addr.ReceiverName, addr.Phone, addr.Province, addr.District, addr.Ward, addr.DetailAddress,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		util.Logger.Error("插入订单记录失败", zap.Error(err))
		return fmt.Errorf("failed to insert order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order ID: %w", err)
	}
	order.ID = int(id)
	order.OrderNumber = generateOrderNumber(order.ID)

	if _, err = tx.ExecContext(ctx, "UPDATE orders SET order_number = ? WHERE id = ?", order.OrderNumber, order.ID); err != nil {
		return fmt.Errorf("failed to update order number: %w", err)
	}

	for _, item := range order.Items {
		item.OrderID = order.ID
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_details (order_id, product_detail_id, quantity, unit_price, promotion_id)
			VALUES (?, ?, ?, ?, ?)`,
			item.OrderID, item.ProductDetailID, item.Quantity, item.UnitPrice, item.PromotionID)
		if err != nil {
			util.Logger.Error("插入订单明细失败",
				zap.Error(err),
				zap.Int("product_detail_id", item.ProductDetailID))
			return fmt.Errorf("failed to insert order detail: %w", err)
		}
		detailID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get order detail ID: %w", err)
		}
		item.ID = int(detailID)

		result, err := tx.ExecContext(ctx, `
			UPDATE product_details SET stock = stock - ?
			WHERE id = ? AND stock >= ?`,
			item.Quantity, item.ProductDetailID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to reserve stock: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			util.Logger.Warn("库存不足", zap.Int("product_detail_id", item.ProductDetailID), zap.Int("quantity", item.Quantity))
			return interfaces.ErrOutOfStock
		}
	}

	if err := tx.Commit(); err != nil {
		util.Logger.Error("提交事务失败", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	util.Logger.Info("订单创建成功",
		zap.Int("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return nil
}

// generateOrderNumber 生成订单编号
// 格式: ORD-年份-4位序号，例如: ORD-2024-0001
func generateOrderNumber(orderID int) string {
	return fmt.Sprintf("ORD-%d-%04d", time.Now().Year(), orderID)
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, id int) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = ?`
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			util.Logger.Info("订单不存在", zap.Int("order_id", id))
			return nil, nil
		}
		util.Logger.Error("查询订单失败", zap.Error(err), zap.Int("order_id", id))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.getOrderDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *OrderRepository) getOrderDetails(ctx context.Context, orderID int) ([]*model.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_detail_id, quantity, unit_price, promotion_id
		FROM order_details WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order details: %w", err)
	}
	defer rows.Close()

	var items []*model.OrderDetail
	for rows.Next() {
		var item model.OrderDetail
		var promotionID sql.NullInt64
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductDetailID, &item.Quantity, &item.UnitPrice, &promotionID); err != nil {
			return nil, fmt.Errorf("failed to scan order detail: %w", err)
		}
		if promotionID.Valid {
			id := int(promotionID.Int64)
			item.PromotionID = &id
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (r *OrderRepository) GetOrdersByUser(ctx context.Context, userID int) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.user_id = ? ORDER BY o.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		util.Logger.Error("查询订单失败", zap.Error(err), zap.Int("user_id", userID))
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
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

// notTerminal 排除终态订单的 WHERE 条件及其参数
func notTerminal(column string) (string, []interface{}) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(model.TerminalOrderStatuses)), ",")
	args := make([]interface{}, 0, len(model.TerminalOrderStatuses))
	for _, s := range model.TerminalOrderStatuses {
		args = append(args, s)
	}
	return column + " NOT IN (" + placeholders + ")", args
}

func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID int, status string) (bool, error) {
	guard, guardArgs := notTerminal("status")
	query := `UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ? AND ` + guard
	args := append([]interface{}{status, orderID}, guardArgs...)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// CancelOrder 仅取消未支付的待处理订单，同时归还库存与优惠券使用次数
func (r *OrderRepository) CancelOrder(ctx context.Context, orderID int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW()
		WHERE id = ? AND status = ? AND payment_status <> ?`,
		model.OrderStatusCancelled, orderID, model.OrderStatusPending, model.PaymentStatusPaid)
	if err != nil {
		return false, err
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE product_details pd
		JOIN order_details od ON od.product_detail_id = pd.id
		SET pd.stock = pd.stock + od.quantity
		WHERE od.order_id = ?`, orderID); err != nil {
		return false, fmt.Errorf("failed to restore stock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE vouchers v
		JOIN orders o ON o.voucher_id = v.id
		SET v.used_count = v.used_count - 1
		WHERE o.id = ? AND v.used_count > 0`, orderID); err != nil {
		return false, fmt.Errorf("failed to release voucher: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	util.Logger.Info("订单已取消，库存与优惠券已归还", zap.Int("order_id", orderID))
	return true, nil
}

// CatalogRepository 读取商品规格与优惠券
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db}
}

func (r *CatalogRepository) GetProductDetail(ctx context.Context, id int) (*model.ProductDetail, error) {
	query := `
		SELECT pd.id, p.name, pd.price, pd.stock, pr.id, COALESCE(pr.discount_percent, 0)
		FROM product_details pd
		JOIN products p ON p.id = pd.product_id
		LEFT JOIN promotions pr ON pr.id = p.promotion_id
			AND pr.is_active = TRUE AND pr.start_at <= NOW() AND pr.end_at > NOW()
		WHERE pd.id = ?`

	var detail model.ProductDetail
	var promotionID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&detail.ID, &detail.ProductName, &detail.Price, &detail.Stock,
		&promotionID, &detail.ActivePromotionDiscount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product detail: %w", err)
	}
	if promotionID.Valid {
		pid := int(promotionID.Int64)
		detail.ActivePromotionID = &pid
	}
	return &detail, nil
}

func (r *CatalogRepository) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	query := `
		SELECT id, code, discount_type, discount_value, min_order_value, max_discount,
			usage_limit, used_count, start_at, end_at, is_active
		FROM vouchers WHERE code = ?`

	var v model.Voucher
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&v.ID, &v.Code, &v.DiscountType, &v.DiscountValue, &v.MinOrderValue, &v.MaxDiscount,
		&v.UsageLimit, &v.UsedCount, &v.StartAt, &v.EndAt, &v.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return &v, nil
}
