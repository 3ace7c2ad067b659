package gateway

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// 支付回调事件类型
const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
	EventIgnored          = "ignored"
)

// CheckoutRequest 创建收银台会话所需的订单信息
type CheckoutRequest struct {
	OrderID       int
	OrderNumber   string
	PaymentID     int
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// RefundRequest 向支付处理方发起退款
type RefundRequest struct {
	PaymentIntentID string
	Amount          decimal.Decimal
	Currency        string
	Reason          string
	// IdempotencyKey 同一退款申请重复提交时由处理方去重
	IdempotencyKey string
}

type Refund struct {
	ID     string
	Status string
}

// WebhookEvent 已验签并归一化的支付回调
type WebhookEvent struct {
	ID              string
	Type            string
	RawType         string
	SessionID       string
	PaymentIntentID string
	OrderID         int
	PaymentID       int
}

// PaymentGateway 支付处理方
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
	CreateRefund(ctx context.Context, req *RefundRequest) (*Refund, error)
	ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error)
}

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// ToMinorUnits 金额转为最小货币单位（如美分），零小数位货币保持原值
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits ToMinorUnits 的逆运算
func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
