package service

import (
	"context"
	stderrors "errors"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/gateway"
	"fashion-backend/internal/lock"
	"fashion-backend/internal/messaging"
	"fashion-backend/internal/model"
	"fashion-backend/internal/repository/interfaces"
	"fashion-backend/internal/storage"
	"fashion-backend/internal/util"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxRefundImages = 5

// CreateRefundRequest 用户提交的退款申请
type CreateRefundRequest struct {
	OrderID int
	Reason  string
	// Amount 为空时退还订单全额
	Amount *decimal.Decimal
	Images []*multipart.FileHeader
}

// UpdateRefundStatusRequest 管理员审核
type UpdateRefundStatusRequest struct {
	Status    string `json:"status" binding:"required,refund_status"`
	AdminNote string `json:"admin_note"`
}

type RefundServiceInterface interface {
	CreateRefundRequest(ctx context.Context, userID int, req *CreateRefundRequest) (*model.RefundRequest, error)
	UpdateRefundStatus(ctx context.Context, requestID, adminID int, req *UpdateRefundStatusRequest) (*model.RefundRequest, error)
	GetRefundStatus(ctx context.Context, userID, orderID int) (*model.RefundRequest, error)
	ListRefundRequests(ctx context.Context, status string, page, pageSize int) ([]*model.RefundRequest, int, error)
}

type RefundService struct {
	orderRepo   interfaces.OrderRepository
	paymentRepo interfaces.PaymentRepository
	refundRepo  interfaces.RefundRepository
	gateway     gateway.PaymentGateway
	locker      lock.Locker
	storage     storage.Storage
	publisher   messaging.Publisher
	now         func() time.Time
}

func NewRefundService(
	orderRepo interfaces.OrderRepository,
	paymentRepo interfaces.PaymentRepository,
	refundRepo interfaces.RefundRepository,
	gw gateway.PaymentGateway,
	locker lock.Locker,
	store storage.Storage,
	publisher messaging.Publisher,
) *RefundService {
	return &RefundService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		gateway:     gw,
		locker:      locker,
		storage:     store,
		publisher:   publisher,
		now:         time.Now,
	}
}

var _ RefundServiceInterface = (*RefundService)(nil)

// CreateRefundRequest 申请退款
func (s *RefundService) CreateRefundRequest(ctx context.Context, userID int, req *CreateRefundRequest) (*model.RefundRequest, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load order", err)
	}
	if order == nil || order.UserID != userID {
		return nil, errors.New(errors.ErrOrderNotFound, "order not found")
	}
	if !order.IsRefundable() {
		return nil, errors.New(errors.ErrInvalidState,
			fmt.Sprintf("order is not eligible for refund (status %s, payment %s)", order.Status, order.PaymentStatus))
	}

	latest, err := s.refundRepo.GetLatestRefundRequestByOrder(ctx, order.ID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load refund requests", err)
	}
	if latest != nil && latest.IsOpen() {
		return nil, errors.New(errors.ErrInvalidState,
			fmt.Sprintf("a refund request for this order is already %s", latest.Status))
	}

	amount := order.Total
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(order.Total) {
		return nil, errors.New(errors.ErrValidation, "refund amount must be greater than 0 and not exceed the order total")
	}

	if len(req.Images) > maxRefundImages {
		return nil, errors.New(errors.ErrValidation, fmt.Sprintf("at most %d images are allowed", maxRefundImages))
	}
	images, keys, err := s.uploadImages(ctx, order.ID, req.Images)
	if err != nil {
		return nil, err
	}

	request := &model.RefundRequest{
		OrderID:      order.ID,
		UserID:       userID,
		Reason:       strings.TrimSpace(req.Reason),
		RefundAmount: amount,
		Status:       model.RefundStatusPending,
		Images:       images,
	}
	if err := s.refundRepo.CreateRefundRequest(ctx, request); err != nil {
		util.Logger.Error("创建退款申请失败", zap.Error(err), zap.Int("order_id", order.ID))
		s.removeImages(keys)
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create refund request", err)
	}

	util.Logger.Info("退款申请已提交",
		zap.Int("refund_request_id", request.ID),
		zap.Int("order_id", order.ID),
		zap.String("amount", amount.String()))
	return request, nil
}

// uploadImages 先校验全部文件再上传，中途失败时删除已上传的文件
func (s *RefundService) uploadImages(ctx context.Context, orderID int, files []*multipart.FileHeader) ([]string, []string, error) {
	if len(files) == 0 {
		return nil, nil, nil
	}
	if s.storage == nil {
		return nil, nil, errors.New(errors.ErrServiceUnavailable, "image upload is not configured")
	}
	for _, f := range files {
		if !util.IsAllowedImage(f.Filename) {
			return nil, nil, errors.New(errors.ErrValidation, "only jpg, png and webp images are allowed")
		}
	}

	urls := make([]string, 0, len(files))
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := fmt.Sprintf("refunds/%d/%s", orderID, util.GenerateUniqueFilename(f.Filename))
		url, err := s.storage.UploadFile(ctx, f, key)
		if err != nil {
			util.Logger.Error("上传退款凭证失败", zap.Error(err), zap.String("filename", f.Filename))
			s.removeImages(keys)
			return nil, nil, errors.Wrap(errors.ErrInternal, "failed to upload image", err)
		}
		urls = append(urls, url)
		keys = append(keys, key)
	}
	return urls, keys, nil
}

// removeImages 清理孤立的凭证文件，失败只记录日志
func (s *RefundService) removeImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := s.storage.DeleteFile(ctx, key); err != nil {
			util.Logger.Warn("删除退款凭证失败", zap.Error(err), zap.String("key", key))
		}
	}
}

// UpdateRefundStatus 管理员审核退款申请。批准后立即调用 Stripe 退款，
// 成功则申请完成；Stripe 调用失败时申请保持 approved，可再次提交 approved 重试。
func (s *RefundService) UpdateRefundStatus(ctx context.Context, requestID, adminID int, req *UpdateRefundStatusRequest) (*model.RefundRequest, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != model.RefundStatusApproved && status != model.RefundStatusRejected {
		return nil, errors.New(errors.ErrValidation, "status must be approved or rejected")
	}

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.IsTerminal() {
		return nil, errors.New(errors.ErrInvalidState, fmt.Sprintf("refund request is already %s", request.Status))
	}

	if status == model.RefundStatusRejected {
		return s.reject(ctx, request, adminID, req.AdminNote)
	}
	return s.approve(ctx, requestID, adminID, req.AdminNote)
}

func (s *RefundService) loadRequest(ctx context.Context, requestID int) (*model.RefundRequest, error) {
	request, err := s.refundRepo.GetRefundRequestByID(ctx, requestID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load refund request", err)
	}
	if request == nil {
		return nil, errors.New(errors.ErrRefundNotFound, "refund request not found")
	}
	return request, nil
}

func (s *RefundService) reject(ctx context.Context, request *model.RefundRequest, adminID int, note string) (*model.RefundRequest, error) {
	if request.Status != model.RefundStatusPending {
		return nil, errors.New(errors.ErrInvalidState, fmt.Sprintf("refund request is already %s", request.Status))
	}

	at := s.now()
	ok, err := s.refundRepo.TransitionRefundStatus(ctx, request.ID, model.RefundStatusPending, model.RefundStatusRejected, adminID, note, at)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to update refund request", err)
	}
	if !ok {
		return nil, errors.New(errors.ErrInvalidState, "refund request was processed concurrently")
	}

	request.Status = model.RefundStatusRejected
	request.AdminNote = note
	request.ProcessedBy = &adminID
	request.ProcessedAt = &at
	util.Logger.Info("退款申请已拒绝", zap.Int("refund_request_id", request.ID), zap.Int("admin_id", adminID))
	return request, nil
}

func (s *RefundService) approve(ctx context.Context, requestID, adminID int, note string) (*model.RefundRequest, error) {
	unlock, err := s.locker.Acquire(ctx, fmt.Sprintf("refund:%d", requestID), 2*time.Minute)
	if err != nil {
		if stderrors.Is(err, lock.ErrLockBusy) {
			return nil, errors.New(errors.ErrInvalidState, "refund request is being processed")
		}
		return nil, errors.Wrap(errors.ErrServiceUnavailable, "failed to acquire refund lock", err)
	}
	defer unlock()

	// 持锁后重新读取，避免使用过期状态
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch request.Status {
	case model.RefundStatusPending:
		at := s.now()
		ok, err := s.refundRepo.TransitionRefundStatus(ctx, request.ID, model.RefundStatusPending, model.RefundStatusApproved, adminID, note, at)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to update refund request", err)
		}
		if !ok {
			return nil, errors.New(errors.ErrInvalidState, "refund request was processed concurrently")
		}
		request.Status = model.RefundStatusApproved
		request.AdminNote = note
		request.ProcessedBy = &adminID
		request.ProcessedAt = &at
	case model.RefundStatusApproved:
		util.Logger.Info("重试已批准退款", zap.Int("refund_request_id", request.ID), zap.Int("admin_id", adminID))
	default:
		return nil, errors.New(errors.ErrInvalidState, fmt.Sprintf("refund request is already %s", request.Status))
	}

	order, err := s.orderRepo.GetOrderByID(ctx, request.OrderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load order", err)
	}
	if order == nil {
		return nil, errors.New(errors.ErrOrderNotFound, "order not found")
	}
	payment, err := s.paymentRepo.GetLatestPaymentByOrderID(ctx, request.OrderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load payment", err)
	}
	if payment == nil || payment.StripePaymentIntentID == "" {
		return nil, errors.New(errors.ErrInvalidState, "order has no captured payment to refund")
	}

	refund, err := s.gateway.CreateRefund(ctx, &gateway.RefundRequest{
		PaymentIntentID: payment.StripePaymentIntentID,
		Amount:          request.RefundAmount,
		Currency:        payment.Currency,
		Reason:          request.Reason,
		IdempotencyKey:  fmt.Sprintf("refund-request-%d", request.ID),
	})
	if err != nil {
		util.Logger.Error("Stripe退款失败，申请保持已批准状态",
			zap.Error(err),
			zap.Int("refund_request_id", request.ID))
		if errors.CodeOf(err) != errors.ErrExternal {
			err = errors.Wrap(errors.ErrExternal, "payment processor refund failed", err)
		}
		return nil, err
	}

	request.StripeRefundID = refund.ID
	orderStatus, paymentStatus := order.Status, model.PaymentStatusPartiallyRefunded
	if !request.RefundAmount.LessThan(order.Total) {
		orderStatus, paymentStatus = model.OrderStatusRefunded, model.PaymentStatusRefunded
	}
	if err := s.refundRepo.CompleteRefund(ctx, request, orderStatus, paymentStatus); err != nil {
		// Stripe 已退款，重试时幂等键保证不会重复退款
		util.Logger.Error("保存退款结果失败",
			zap.Error(err),
			zap.Int("refund_request_id", request.ID),
			zap.String("stripe_refund_id", refund.ID))
		return nil, errors.Wrap(errors.ErrDatabase, "failed to record refund", err)
	}
	request.Status = model.RefundStatusCompleted

	util.Logger.Info("退款完成",
		zap.Int("refund_request_id", request.ID),
		zap.Int("order_id", request.OrderID),
		zap.String("stripe_refund_id", refund.ID),
		zap.String("amount", request.RefundAmount.String()))

	event := messaging.NewEvent(messaging.TopicRefundCompleted, map[string]interface{}{
		"refund_request_id": request.ID,
		"order_id":          request.OrderID,
		"amount":            request.RefundAmount.String(),
		"currency":          payment.Currency,
		"stripe_refund_id":  refund.ID,
		"payment_status":    paymentStatus,
	})
	if err := s.publisher.PublishEvent(ctx, messaging.TopicRefundCompleted, fmt.Sprint(request.OrderID), event); err != nil {
		util.Logger.Error("发布事件失败", zap.Error(err), zap.String("topic", messaging.TopicRefundCompleted))
	}
	return request, nil
}

// GetRefundStatus 用户查询订单最近一次退款申请
func (s *RefundService) GetRefundStatus(ctx context.Context, userID, orderID int) (*model.RefundRequest, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load order", err)
	}
	if order == nil || order.UserID != userID {
		return nil, errors.New(errors.ErrOrderNotFound, "order not found")
	}

	request, err := s.refundRepo.GetLatestRefundRequestByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load refund request", err)
	}
	if request == nil {
		return nil, errors.New(errors.ErrRefundNotFound, "no refund request for this order")
	}
	return request, nil
}

func (s *RefundService) ListRefundRequests(ctx context.Context, status string, page, pageSize int) ([]*model.RefundRequest, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	requests, total, err := s.refundRepo.ListRefundRequests(ctx, status, page, pageSize)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrDatabase, "failed to list refund requests", err)
	}
	return requests, total, nil
}
