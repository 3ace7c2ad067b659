package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 退款申请状态
const (
	RefundStatusPending   = "pending"
	RefundStatusApproved  = "approved"
	RefundStatusRejected  = "rejected"
	RefundStatusCompleted = "completed"
)

// RefundRequest 退款申请模型
type RefundRequest struct {
	ID             int             `json:"id"`
	OrderID        int             `json:"order_id"`
	UserID         int             `json:"user_id"`
	Reason         string          `json:"reason"`
	RefundAmount   decimal.Decimal `json:"refund_amount"`
	Status         string          `json:"status"`
	AdminNote      string          `json:"admin_note,omitempty"`
	StripeRefundID string          `json:"stripe_refund_id,omitempty"`
	ProcessedBy    *int            `json:"processed_by,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	Images         []string        `json:"images,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsTerminal 已拒绝或已完成的申请不能再变更
func (r *RefundRequest) IsTerminal() bool {
	return r.Status == RefundStatusRejected || r.Status == RefundStatusCompleted
}

// IsOpen 待处理或已批准但尚未退款成功
func (r *RefundRequest) IsOpen() bool {
	return r.Status == RefundStatusPending || r.Status == RefundStatusApproved
}
