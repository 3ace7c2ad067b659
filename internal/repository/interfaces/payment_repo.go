package interfaces

import (
	"context"
	"fashion-backend/internal/model"
)

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *model.Payment) error
	UpdateCheckoutSession(ctx context.Context, paymentID int, sessionID, checkoutURL string) error
	GetPaymentByID(ctx context.Context, id int) (*model.Payment, error)
	GetLatestPaymentByOrderID(ctx context.Context, orderID int) (*model.Payment, error)
	// CompletePayment 支付成功：更新支付记录，订单未处于终态时置为已支付、已确认。
	// 返回本次调用是否将支付记录改为成功
	CompletePayment(ctx context.Context, paymentID int, paymentIntentID string) (bool, error)
	// MarkPaymentRefunded 支付已全额退回（订单在付款完成前已取消）
	MarkPaymentRefunded(ctx context.Context, paymentID int) error
	// FailPayment 支付失败：更新支付记录与订单支付状态
	FailPayment(ctx context.Context, paymentID int) error
}
