package payment

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/model"
	"fashion-backend/internal/service"
	"fashion-backend/internal/util"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundHandler 处理退款相关的请求
type RefundHandler struct {
	refundService service.RefundServiceInterface
}

func NewRefundHandler(refundService service.RefundServiceInterface) *RefundHandler {
	return &RefundHandler{refundService}
}

// RequestRefund 处理退款申请，支持 JSON 或带 images 的 multipart 表单
func (h *RefundHandler) RequestRefund(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "invalid order ID"))
		return
	}

	req := &service.CreateRefundRequest{OrderID: orderID}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := h.bindMultipart(c, req); err != nil {
			errors.HandleError(c, err)
			return
		}
	} else {
		var input struct {
			Reason string           `json:"reason" binding:"required"`
			Amount *decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			util.Logger.Warn("无效的退款申请", zap.Error(err))
			errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid refund request", err))
			return
		}
		req.Reason = input.Reason
		req.Amount = input.Amount
	}

	request, err := h.refundService.CreateRefundRequest(c.Request.Context(), c.GetInt("user_id"), req)
	if err != nil {
		util.Logger.Warn("申请退款失败",
			zap.Error(err),
			zap.Int("order_id", orderID))
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, request, "refund request submitted")
}

func (h *RefundHandler) bindMultipart(c *gin.Context, req *service.CreateRefundRequest) error {
	form, err := c.MultipartForm()
	if err != nil {
		return errors.Wrap(errors.ErrBadRequest, "invalid multipart form", err)
	}

	req.Reason = strings.TrimSpace(c.PostForm("reason"))
	if req.Reason == "" {
		return errors.New(errors.ErrValidation, "reason is required")
	}
	if raw := strings.TrimSpace(c.PostForm("amount")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return errors.Wrap(errors.ErrValidation, "invalid amount", err)
		}
		req.Amount = &amount
	}
	req.Images = form.File["images"]
	return nil
}

// GetRefundStatus 获取订单最近一次退款申请
func (h *RefundHandler) GetRefundStatus(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "invalid order ID"))
		return
	}

	request, err := h.refundService.GetRefundStatus(c.Request.Context(), c.GetInt("user_id"), orderID)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, request, "")
}

// ListRefundRequests 管理员查看退款申请
func (h *RefundHandler) ListRefundRequests(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := strings.ToLower(c.Query("status"))
	switch status {
	case "", model.RefundStatusPending, model.RefundStatusApproved, model.RefundStatusRejected, model.RefundStatusCompleted:
	default:
		errors.HandleError(c, errors.New(errors.ErrValidation, "invalid status filter"))
		return
	}

	requests, total, err := h.refundService.ListRefundRequests(c.Request.Context(), status, page, pageSize)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, gin.H{
		"items":     requests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	}, "")
}

// UpdateRefundStatus 管理员审核退款申请
func (h *RefundHandler) UpdateRefundStatus(c *gin.Context) {
	requestID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "invalid refund request ID"))
		return
	}

	var input service.UpdateRefundStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "status must be approved or rejected", err))
		return
	}

	adminID := c.GetInt("user_id")
	request, err := h.refundService.UpdateRefundStatus(c.Request.Context(), requestID, adminID, &input)
	if err != nil {
		util.Logger.Error("处理退款申请失败",
			zap.Error(err),
			zap.Int("refund_request_id", requestID),
			zap.Int("admin_id", adminID))
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, request, "refund request "+request.Status)
}
