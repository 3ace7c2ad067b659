package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DiscountTypePercent = "percent"
	DiscountTypeFixed   = "fixed"
)

// Voucher 优惠券
type Voucher struct {
	ID            int             `json:"id"`
	Code          string          `json:"code"`
	DiscountType  string          `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinOrderValue decimal.Decimal `json:"min_order_value"`
	MaxDiscount   decimal.Decimal `json:"max_discount"` // 0 表示不限
	UsageLimit    int             `json:"usage_limit"`  // 0 表示不限
	UsedCount     int             `json:"used_count"`
	StartAt       time.Time       `json:"start_at"`
	EndAt         time.Time       `json:"end_at"`
	IsActive      bool            `json:"is_active"`
}

// IsUsableAt 判断优惠券在指定时间是否可用
func (v *Voucher) IsUsableAt(now time.Time) bool {
	if !v.IsActive || now.Before(v.StartAt) || !now.Before(v.EndAt) {
		return false
	}
	return v.UsageLimit == 0 || v.UsedCount < v.UsageLimit
}

// DiscountFor 计算优惠金额，不超过小计
func (v *Voucher) DiscountFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(v.MinOrderValue) {
		return decimal.Zero
	}
	var discount decimal.Decimal
	if v.DiscountType == DiscountTypePercent {
		discount = subtotal.Mul(v.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	} else {
		discount = v.DiscountValue
	}
	if v.MaxDiscount.IsPositive() && discount.GreaterThan(v.MaxDiscount) {
		discount = v.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount
}

// Promotion 限时促销
type Promotion struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	StartAt         time.Time       `json:"start_at"`
	EndAt           time.Time       `json:"end_at"`
	IsActive        bool            `json:"is_active"`
}

// SweepResult 过期清理结果
type SweepResult struct {
	Expired     int   `json:"expired"`
	Deactivated int64 `json:"deactivated"`
}
