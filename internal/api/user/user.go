package user

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserServiceInterface
}

func NewUserHandler(userService service.UserServiceInterface) *UserHandler {
	return &UserHandler{userService}
}

// GetCurrentUser 返回当前登录用户
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.GetInt("user_id"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, user, "")
}
