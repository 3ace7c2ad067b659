package middleware

import (
	"context"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminChecker 判断用户是否为管理员
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int) (bool, error)
}

// AdminMiddleware 确保只有管理员可以访问某些路由，需在 AuthMiddleware 之后使用
func AdminMiddleware(users AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt("user_id")
		if userID == 0 {
			util.Logger.Warn("用户ID不存在", zap.String("path", c.Request.URL.Path))
			errors.HandleError(c, errors.New(errors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}

		isAdmin, err := users.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			errors.HandleError(c, err)
			c.Abort()
			return
		}
		if !isAdmin {
			util.Logger.Warn("非管理员访问",
				zap.Int("user_id", userID),
				zap.String("path", c.Request.URL.Path))
			errors.HandleError(c, errors.New(errors.ErrForbidden, "admin access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}
