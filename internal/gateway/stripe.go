package gateway

import (
	"context"
	"encoding/json"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/util"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// StripeConfig Stripe 接入配置
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type StripeGateway struct {
	api *client.API
	cfg StripeConfig
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	return &StripeGateway{
		api: client.New(cfg.SecretKey, nil),
		cfg: cfg,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	orderID := strconv.Itoa(req.OrderID)
	paymentID := strconv.Itoa(req.PaymentID)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		ClientReferenceID: stripe.String(orderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Order " + req.OrderNumber),
					},
					UnitAmount: stripe.Int64(ToMinorUnits(req.Amount, req.Currency)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": orderID, "payment_id": paymentID},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderID)
	params.AddMetadata("payment_id", paymentID)
	params.SetIdempotencyKey("checkout-payment-" + paymentID)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		util.Logger.Error("创建Stripe收银台会话失败", zap.Error(err), zap.Int("order_id", req.OrderID))
		return nil, errors.Wrap(errors.ErrExternal, "failed to create checkout session", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, req *RefundRequest) (*Refund, error) {
	if req.PaymentIntentID == "" {
		return nil, errors.New(errors.ErrInvalidState, "payment has no captured payment intent")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Amount:        stripe.Int64(ToMinorUnits(req.Amount, req.Currency)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		util.Logger.Error("Stripe退款失败", zap.Error(err), zap.String("payment_intent", req.PaymentIntentID))
		return nil, errors.Wrap(errors.ErrExternal, "failed to create refund", err)
	}
	return &Refund{ID: r.ID, Status: string(r.Status)}, nil
}

func (g *StripeGateway) ParseWebhookEvent(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Wrap(errors.ErrBadRequest, "invalid webhook signature", err)
	}

	out := &WebhookEvent{ID: event.ID, RawType: string(event.Type), Type: EventIgnored}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		out.Type = EventPaymentSucceeded
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		out.Type = EventPaymentFailed
	default:
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, errors.Wrap(errors.ErrBadRequest, "malformed checkout session payload", err)
	}
	// 异步支付方式在 completed 时尚未到账，等待 async_payment_succeeded
	if event.Type == stripe.EventTypeCheckoutSessionCompleted && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		out.Type = EventIgnored
	}

	out.SessionID = sess.ID
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	if out.OrderID, err = metadataInt(sess.Metadata, "order_id"); err != nil {
		return nil, err
	}
	if out.PaymentID, err = metadataInt(sess.Metadata, "payment_id"); err != nil {
		return nil, err
	}
	return out, nil
}

func metadataInt(md map[string]string, key string) (int, error) {
	v, err := strconv.Atoi(md[key])
	if err != nil {
		return 0, errors.New(errors.ErrBadRequest, fmt.Sprintf("checkout session metadata %s is missing", key))
	}
	return v, nil
}
