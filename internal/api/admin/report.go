package admin

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/service"
	"fashion-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reportService service.ReportServiceInterface
}

func NewReportHandler(reportService service.ReportServiceInterface) *ReportHandler {
	return &ReportHandler{reportService}
}

// SendDailyReport 将当日报表发送到指定邮箱
func (h *ReportHandler) SendDailyReport(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid email address", err))
		return
	}

	if err := h.reportService.SendDailyReport(c.Request.Context(), input.Email); err != nil {
		util.Logger.Error("发送日报失败", zap.Error(err), zap.String("email", input.Email))
		errors.HandleError(c, err)
		return
	}

	errors.HandleSuccess(c, nil, "Daily report sent to "+input.Email)
}
