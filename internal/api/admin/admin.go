package admin

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/middleware"
	"fashion-backend/internal/service"
	"fashion-backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorStatsProvider 错误统计来源
type ErrorStatsProvider interface {
	Stats() middleware.ErrorStats
}

// AdminHandler 按功能模块组织处理方法
type AdminHandler struct {
	shipmentService   service.ShipmentServiceInterface
	expirationService service.ExpirationServiceInterface
	errorStats        ErrorStatsProvider
}

// NewAdminHandler 创建一个新的 AdminHandler 实例
func NewAdminHandler(
	shipmentService service.ShipmentServiceInterface,
	expirationService service.ExpirationServiceInterface,
	errorStats ErrorStatsProvider,
) *AdminHandler {
	return &AdminHandler{shipmentService, expirationService, errorStats}
}

// 物流管理
func (h *AdminHandler) RefreshShipment(c *gin.Context) {
	shipmentID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		errors.HandleError(c, errors.New(errors.ErrBadRequest, "invalid shipment ID"))
		return
	}

	shipment, err := h.shipmentService.RefreshTracking(c.Request.Context(), shipmentID)
	if err != nil {
		util.Logger.Warn("手动刷新运单失败", zap.Error(err), zap.Int("shipment_id", shipmentID))
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, shipment, "shipment refreshed")
}

// 过期清理
func (h *AdminHandler) SweepExpirations(c *gin.Context) {
	results, err := h.expirationService.SweepExpired(c.Request.Context())
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrDatabase, "expiration sweep failed", err))
		return
	}
	util.Logger.Info("管理员手动触发过期清理", zap.Int("admin_id", c.GetInt("user_id")))
	errors.HandleSuccess(c, results, "expiration sweep completed")
}

// 系统统计
func (h *AdminHandler) GetErrorStats(c *gin.Context) {
	errors.HandleSuccess(c, h.errorStats.Stats(), "")
}
