package service

import (
	"context"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/gateway"
	"fashion-backend/internal/messaging"
	"fashion-backend/internal/model"
	"fashion-backend/internal/repository/interfaces"
	"fashion-backend/internal/util"
	"fmt"

	"go.uber.org/zap"
)

// ShipmentCreator 支付成功后创建发货
type ShipmentCreator interface {
	CreateShipmentForOrder(ctx context.Context, order *model.Order) (*model.Shipment, error)
}

type PaymentServiceInterface interface {
	CreateCheckoutSession(ctx context.Context, userID, orderID int) (*model.Payment, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type PaymentService struct {
	orderRepo   interfaces.OrderRepository
	paymentRepo interfaces.PaymentRepository
	userRepo    interfaces.UserRepository
	gateway     gateway.PaymentGateway
	shipments   ShipmentCreator
	mailer      Mailer
	publisher   messaging.Publisher
}

func NewPaymentService(
	orderRepo interfaces.OrderRepository,
	paymentRepo interfaces.PaymentRepository,
	userRepo interfaces.UserRepository,
	gw gateway.PaymentGateway,
	shipments ShipmentCreator,
	mailer Mailer,
	publisher messaging.Publisher,
) *PaymentService {
	return &PaymentService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		gateway:     gw,
		shipments:   shipments,
		mailer:      mailer,
		publisher:   publisher,
	}
}

var _ PaymentServiceInterface = (*PaymentService)(nil)

// CreateCheckoutSession 为订单总额创建一条支付记录与 Stripe 收银台会话
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, userID, orderID int) (*model.Payment, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to load order", err)
	}
	if order == nil || order.UserID != userID {
		return nil, errors.New(errors.ErrOrderNotFound, "order not found")
	}
	if order.PaymentStatus == model.PaymentStatusPaid || order.Status != model.OrderStatusPending {
		return nil, errors.New(errors.ErrInvalidState, "order is not awaiting payment")
	}

	payment := &model.Payment{
		OrderID:  order.ID,
		Amount:   order.Total,
		Currency: order.Currency,
		Status:   model.PaymentRecordPending,
	}
	if err := s.paymentRepo.CreatePayment(ctx, payment); err != nil {
		util.Logger.Error("创建支付记录失败", zap.Error(err), zap.Int("order_id", order.ID))
		return nil, errors.Wrap(errors.ErrDatabase, "failed to create payment", err)
	}

	var email string
	if user, err := s.userRepo.FindByID(ctx, userID); err == nil && user != nil {
		email = user.Email
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, &gateway.CheckoutRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentID:     payment.ID,
		Amount:        order.Total,
		Currency:      order.Currency,
		CustomerEmail: email,
	})
	if err != nil {
		return nil, err
	}

	if err := s.paymentRepo.UpdateCheckoutSession(ctx, payment.ID, session.ID, session.URL); err != nil {
		util.Logger.Error("保存收银台会话失败", zap.Error(err), zap.Int("payment_id", payment.ID))
		return nil, errors.Wrap(errors.ErrDatabase, "failed to save checkout session", err)
	}
	payment.StripeSessionID = session.ID
	payment.CheckoutURL = session.URL

	util.Logger.Info("收银台会话创建成功",
		zap.Int("order_id", order.ID),
		zap.Int("payment_id", payment.ID),
		zap.String("session_id", session.ID))
	return payment, nil
}

// HandleWebhook 处理 Stripe 回调，重复投递不会产生副作用
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhookEvent(payload, signature)
	if err != nil {
		util.Logger.Warn("Stripe回调验签失败", zap.Error(err))
		return err
	}
	if event.Type == gateway.EventIgnored {
		util.Logger.Debug("忽略Stripe事件", zap.String("type", event.RawType), zap.String("event_id", event.ID))
		return nil
	}

	payment, err := s.paymentRepo.GetPaymentByID(ctx, event.PaymentID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to load payment", err)
	}
	if payment == nil || payment.OrderID != event.OrderID {
		// 未知支付无需 Stripe 重试
		util.Logger.Warn("回调对应的支付记录不存在",
			zap.String("event_id", event.ID),
			zap.Int("payment_id", event.PaymentID),
			zap.Int("order_id", event.OrderID))
		return nil
	}

	switch event.Type {
	case gateway.EventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, payment, event)
	case gateway.EventPaymentFailed:
		return s.handlePaymentFailed(ctx, payment, event)
	}
	return nil
}

func (s *PaymentService) handlePaymentSucceeded(ctx context.Context, payment *model.Payment, event *gateway.WebhookEvent) error {
	if payment.Status == model.PaymentRecordRefunded {
		util.Logger.Info("支付已退回，忽略重复回调", zap.Int("payment_id", payment.ID), zap.String("event_id", event.ID))
		return nil
	}

	// 只有真正将支付记录改为成功的那次投递发送通知，后续发货失败重试时不会重复
	completed := false
	if payment.Status != model.PaymentRecordSucceeded {
		flipped, err := s.paymentRepo.CompletePayment(ctx, payment.ID, event.PaymentIntentID)
		if err != nil {
			util.Logger.Error("更新支付成功状态失败", zap.Error(err), zap.Int("payment_id", payment.ID))
			return errors.Wrap(errors.ErrDatabase, "failed to complete payment", err)
		}
		completed = flipped
	}

	order, err := s.orderRepo.GetOrderByID(ctx, payment.OrderID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to load order", err)
	}
	if order == nil {
		return errors.New(errors.ErrOrderNotFound, "order not found")
	}

	if order.Status == model.OrderStatusCancelled || order.Status == model.OrderStatusRefunded {
		return s.refundLatePayment(ctx, order, payment, event)
	}

	if completed {
		s.notifyPaid(ctx, order, payment)
	}
	// 发货失败时返回错误，由 Stripe 重新投递后再次尝试
	if _, err := s.shipments.CreateShipmentForOrder(ctx, order); err != nil {
		return err
	}
	return nil
}

// refundLatePayment 订单在付款完成前已取消，全额退回这笔支付
func (s *PaymentService) refundLatePayment(ctx context.Context, order *model.Order, payment *model.Payment, event *gateway.WebhookEvent) error {
	intentID := event.PaymentIntentID
	if intentID == "" {
		intentID = payment.StripePaymentIntentID
	}
	util.Logger.Warn("订单已取消后收到付款，发起全额退款",
		zap.Int("order_id", order.ID),
		zap.Int("payment_id", payment.ID),
		zap.String("status", order.Status))

	refund, err := s.gateway.CreateRefund(ctx, &gateway.RefundRequest{
		PaymentIntentID: intentID,
		Amount:          payment.Amount,
		Currency:        payment.Currency,
		Reason:          "order " + order.Status + " before payment completed",
		IdempotencyKey:  fmt.Sprintf("cancelled-order-%d", payment.ID),
	})
	if err != nil {
		util.Logger.Error("取消订单的付款退款失败", zap.Error(err), zap.Int("payment_id", payment.ID))
		if errors.CodeOf(err) != errors.ErrExternal {
			err = errors.Wrap(errors.ErrExternal, "payment processor refund failed", err)
		}
		return err
	}

	if err := s.paymentRepo.MarkPaymentRefunded(ctx, payment.ID); err != nil {
		util.Logger.Error("保存退款结果失败",
			zap.Error(err),
			zap.Int("payment_id", payment.ID),
			zap.String("stripe_refund_id", refund.ID))
		return errors.Wrap(errors.ErrDatabase, "failed to mark payment refunded", err)
	}

	refunded := messaging.NewEvent(messaging.TopicRefundCompleted, map[string]interface{}{
		"order_id":         order.ID,
		"payment_id":       payment.ID,
		"amount":           payment.Amount.String(),
		"currency":         payment.Currency,
		"stripe_refund_id": refund.ID,
		"reason":           "order_cancelled",
	})
	if err := s.publisher.PublishEvent(ctx, messaging.TopicRefundCompleted, fmt.Sprint(order.ID), refunded); err != nil {
		util.Logger.Error("发布事件失败", zap.Error(err), zap.String("topic", messaging.TopicRefundCompleted))
	}

	util.Logger.Info("已退回取消订单的付款",
		zap.Int("order_id", order.ID),
		zap.Int("payment_id", payment.ID),
		zap.String("stripe_refund_id", refund.ID))
	return nil
}

func (s *PaymentService) notifyPaid(ctx context.Context, order *model.Order, payment *model.Payment) {
	event := messaging.NewEvent(messaging.TopicOrderPaid, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"payment_id":   payment.ID,
		"amount":       order.Total.String(),
		"currency":     order.Currency,
	})
	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderPaid, fmt.Sprint(order.ID), event); err != nil {
		util.Logger.Error("发布事件失败", zap.Error(err), zap.String("topic", messaging.TopicOrderPaid))
	}

	user, err := s.userRepo.FindByID(ctx, order.UserID)
	if err != nil || user == nil {
		util.Logger.Warn("无法发送订单确认邮件，用户不存在", zap.Int("user_id", order.UserID), zap.Error(err))
		return
	}
	body, err := RenderOrderConfirmation(user, order)
	if err != nil {
		util.Logger.Error("生成订单确认邮件失败", zap.Error(err), zap.Int("order_id", order.ID))
		return
	}
	SendAsync(s.mailer, user.Email, "Order "+order.OrderNumber+" confirmed", body)
}

func (s *PaymentService) handlePaymentFailed(ctx context.Context, payment *model.Payment, event *gateway.WebhookEvent) error {
	if payment.Status != model.PaymentRecordPending {
		util.Logger.Info("支付已处理，忽略失败回调",
			zap.Int("payment_id", payment.ID),
			zap.String("status", payment.Status),
			zap.String("event", event.RawType))
		return nil
	}
	if err := s.paymentRepo.FailPayment(ctx, payment.ID); err != nil {
		util.Logger.Error("更新支付失败状态失败", zap.Error(err), zap.Int("payment_id", payment.ID))
		return errors.Wrap(errors.ErrDatabase, "failed to mark payment failed", err)
	}
	util.Logger.Info("支付失败", zap.Int("payment_id", payment.ID), zap.Int("order_id", payment.OrderID))
	return nil
}
