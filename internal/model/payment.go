package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 支付记录状态
const (
	PaymentRecordPending   = "pending"
	PaymentRecordSucceeded = "succeeded"
	PaymentRecordFailed    = "failed"
	PaymentRecordRefunded  = "refunded"
)

// Payment 每次发起 Checkout 创建一条，订单的最新支付以最大ID为准
type Payment struct {
	ID                    int             `json:"id"`
	OrderID               int             `json:"order_id"`
	StripeSessionID       string          `json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status"`
	CheckoutURL           string          `json:"checkout_url,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
