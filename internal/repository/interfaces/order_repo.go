package interfaces

import (
	"context"
	"errors"
	"fashion-backend/internal/model"
)

var (
	// ErrVoucherExhausted 优惠券使用次数已满
	ErrVoucherExhausted = errors.New("voucher usage limit reached")
	// ErrOutOfStock 下单时库存已被其他订单占用
	ErrOutOfStock = errors.New("insufficient stock")
)

type OrderRepository interface {
	// CreateOrder 在同一事务中写入订单、明细，扣减库存并占用优惠券次数
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrderByID(ctx context.Context, id int) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int) ([]*model.Order, error)
	// UpdateOrderStatus 不会修改已处于终态的订单，返回是否有行被更新
	UpdateOrderStatus(ctx context.Context, orderID int, status string) (bool, error)
	// CancelOrder 取消未支付的待处理订单，并归还库存
	CancelOrder(ctx context.Context, orderID int) (bool, error)
}

// CatalogRepository 商品目录只读访问
type CatalogRepository interface {
	GetProductDetail(ctx context.Context, id int) (*model.ProductDetail, error)
	GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error)
}
