package payment

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/service"
	"fashion-backend/internal/util"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Stripe 回调请求体上限
const maxWebhookBodyBytes = 65536

type PaymentHandler struct {
	paymentService service.PaymentServiceInterface
}

func NewPaymentHandler(paymentService service.PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{paymentService}
}

// Webhook 接收 Stripe 回调。验签需要原始请求体，因此不经过 JSON 绑定。
// 返回非 2xx 时 Stripe 会重新投递。
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		util.Logger.Error("读取Stripe回调失败", zap.Error(err))
		errors.HandleError(c, errors.Wrap(errors.ErrBadRequest, "failed to read request body", err))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "missing Stripe-Signature header"))
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		util.Logger.Error("处理Stripe回调失败", zap.Error(err))
		errors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
