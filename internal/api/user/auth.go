package user

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/service"
	"fashion-backend/internal/util"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler 处理与认证相关的HTTP请求
type AuthHandler struct {
	userService service.UserServiceInterface
}

// NewAuthHandler 创建一个新的 AuthHandler 实例
func NewAuthHandler(userService service.UserServiceInterface) *AuthHandler {
	return &AuthHandler{userService}
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var loginData struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginData); err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrValidation, "invalid request body", err))
		return
	}

	user, err := h.userService.Login(c.Request.Context(), loginData.Email, loginData.Password)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	token, err := util.GenerateToken(user.ID)
	if err != nil {
		util.Logger.Error("生成令牌失败", zap.Error(err), zap.Int("user_id", user.ID))
		errors.HandleError(c, errors.Wrap(errors.ErrInternal, "failed to generate token", err))
		return
	}

	errors.HandleSuccess(c, gin.H{
		"token": token,
		"user":  user,
	}, "login successful")
}

// Logout 处理用户登出
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.userService.Logout(c.GetString("token")); err != nil {
		errors.HandleError(c, err)
		return
	}
	errors.HandleSuccess(c, nil, "logged out")
}

// RefreshToken 处理令牌刷新
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if tokenString == "" {
		errors.HandleError(c, errors.New(errors.ErrUnauthorized, "missing token"))
		return
	}
	if h.userService.IsTokenBlacklisted(tokenString) {
		errors.HandleError(c, errors.New(errors.ErrInvalidToken, "token has been revoked"))
		return
	}

	newToken, err := util.RefreshToken(tokenString)
	if err != nil {
		errors.HandleError(c, errors.Wrap(errors.ErrInvalidToken, "failed to refresh token", err))
		return
	}

	errors.HandleSuccess(c, gin.H{"token": newToken}, "token refreshed")
}
