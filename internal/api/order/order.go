package order

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/service"
	"fashion-backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OrderHandler 订单、支付与物流查询
type OrderHandler struct {
	orderService    service.OrderServiceInterface
	paymentService  service.PaymentServiceInterface
	shipmentService service.ShipmentServiceInterface
}

func NewOrderHandler(
	orderService service.OrderServiceInterface,
	paymentService service.PaymentServiceInterface,
	shipmentService service.ShipmentServiceInterface,
) *OrderHandler {
	return &OrderHandler{orderService, paymentService, shipmentService}
}

func orderIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "invalid order ID"))
		return 0, false
	}
	return id, true
}

// CreateOrder 下单
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Logger.Warn("无效的下单请求", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid order request", err))
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), c.GetInt("user_id"), &req)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, order, "order created")
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), c.GetInt("user_id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, orders, "")
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	order, err := h.orderService.GetOrder(c.Request.Context(), c.GetInt("user_id"), orderID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, order, "")
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	if err := h.orderService.CancelOrder(c.Request.Context(), c.GetInt("user_id"), orderID); err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, nil, "order cancelled")
}

// Checkout 创建 Stripe 收银台会话，前端跳转到返回的 checkout_url
func (h *OrderHandler) Checkout(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	payment, err := h.paymentService.CreateCheckoutSession(c.Request.Context(), c.GetInt("user_id"), orderID)
	if err != nil {
		util.Logger.Error("创建收银台会话失败", zap.Error(err), zap.Int("order_id", orderID))
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, gin.H{
		"payment_id":   payment.ID,
		"session_id":   payment.StripeSessionID,
		"checkout_url": payment.CheckoutURL,
	}, "checkout session created")
}

func (h *OrderHandler) GetTracking(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	shipment, err := h.shipmentService.GetTracking(c.Request.Context(), c.GetInt("user_id"), orderID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, shipment, "")
}
