package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary 日报统计数据
type DailySummary struct {
	Day               time.Time       `json:"day"`
	TotalOrders       int             `json:"total_orders"`
	PaidOrders        int             `json:"paid_orders"`
	CancelledOrders   int             `json:"cancelled_orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	RefundRequests    int             `json:"refund_requests"`
	RefundedAmount    decimal.Decimal `json:"refunded_amount"`
	DeliveredShipment int             `json:"delivered_shipments"`
}
