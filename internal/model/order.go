package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 订单履约状态
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// 订单支付状态
const (
	PaymentStatusUnpaid            = "unpaid"
	PaymentStatusPaid              = "paid"
	PaymentStatusFailed            = "failed"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// TerminalOrderStatuses 终态订单不可再变更
var TerminalOrderStatuses = []string{OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded}

// IsTerminalOrderStatus 判断订单状态是否为终态
func IsTerminalOrderStatus(status string) bool {
	for _, s := range TerminalOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ShippingAddress 收货地址快照，随订单保存
type ShippingAddress struct {
	ReceiverName  string `json:"receiver_name" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Province      string `json:"province" binding:"required"`
	District      string `json:"district" binding:"required"`
	Ward          string `json:"ward"`
	DetailAddress string `json:"detail_address" binding:"required"`
}

// Order 订单模型
type Order struct {
	ID              int             `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          int             `json:"user_id"`
	Items           []*OrderDetail  `json:"items,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	Carrier         string          `json:"carrier"`
	VoucherID       *int            `json:"voucher_id,omitempty"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ComputeTotal 按 subtotal - discount + shipping 计算总额，仅在创建时调用
func (o *Order) ComputeTotal() {
	o.Total = o.Subtotal.Sub(o.Discount).Add(o.ShippingFee)
}

// IsRefundable 已支付且未取消、未退款的订单可以申请退款
func (o *Order) IsRefundable() bool {
	return o.PaymentStatus == PaymentStatusPaid &&
		o.Status != OrderStatusCancelled &&
		o.Status != OrderStatusRefunded
}

// OrderDetail 订单明细，创建后不可修改
type OrderDetail struct {
	ID              int             `json:"id"`
	OrderID         int             `json:"order_id"`
	ProductDetailID int             `json:"product_detail_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	PromotionID     *int            `json:"promotion_id,omitempty"`
}

// LineTotal 明细小计
func (d *OrderDetail) LineTotal() decimal.Decimal {
	return d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// ProductDetail 商品规格（颜色/尺码），只读取价格与生效中的促销
type ProductDetail struct {
	ID                      int             `json:"id"`
	ProductName             string          `json:"product_name"`
	Price                   decimal.Decimal `json:"price"`
	Stock                   int             `json:"stock"`
	ActivePromotionID       *int            `json:"active_promotion_id,omitempty"`
	ActivePromotionDiscount decimal.Decimal `json:"active_promotion_discount"` // 百分比
}
