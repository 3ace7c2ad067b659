package interfaces

import (
	"context"
	"fashion-backend/internal/model"
	"time"
)

type RefundRepository interface {
	CreateRefundRequest(ctx context.Context, request *model.RefundRequest) error
	GetRefundRequestByID(ctx context.Context, id int) (*model.RefundRequest, error)
	GetLatestRefundRequestByOrder(ctx context.Context, orderID int) (*model.RefundRequest, error)
	ListRefundRequests(ctx context.Context, status string, page, pageSize int) ([]*model.RefundRequest, int, error)
	// TransitionRefundStatus 仅当当前状态为 from 时更新，返回是否更新成功
	TransitionRefundStatus(ctx context.Context, id int, from, to string, adminID int, note string, at time.Time) (bool, error)
	// CompleteRefund 记录 Stripe 退款ID，申请置为 completed，同时更新订单与支付状态
	CompleteRefund(ctx context.Context, request *model.RefundRequest, orderStatus, paymentStatus string) error
}
