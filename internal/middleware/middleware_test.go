package middleware

import (
	"context"
	"fashion-backend/config"
	"fashion-backend/internal/errors"
	"fashion-backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubUsers struct {
	revoked map[string]bool
	admins  map[int]bool
}

func (s *stubUsers) IsTokenBlacklisted(token string) bool { return s.revoked[token] }

func (s *stubUsers) IsAdmin(ctx context.Context, userID int) (bool, error) {
	return s.admins[userID], nil
}

func newTestRouter(users *stubUsers, monitor *ErrorMonitor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = "test-secret"

	router := gin.New()
	router.Use(ErrorMonitorMiddleware(monitor), RecoveryMiddleware())
	auth := router.Group("/", AuthMiddleware(users))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("user_id")})
	})
	auth.GET("/admin", AdminMiddleware(users), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return router
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	users := &stubUsers{revoked: map[string]bool{}, admins: map[int]bool{}}
	router := newTestRouter(users, NewErrorMonitor())

	w := get(router, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(router, "/me", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := util.GenerateToken(42)
	assert.NoError(t, err)
	w = get(router, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":42}`, w.Body.String())

	users.revoked[token] = true
	w = get(router, "/me", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminMiddleware(t *testing.T) {
	users := &stubUsers{revoked: map[string]bool{}, admins: map[int]bool{1: true}}
	router := newTestRouter(users, NewErrorMonitor())

	adminToken, _ := util.GenerateToken(1)
	userToken, _ := util.GenerateToken(42)

	assert.Equal(t, http.StatusNoContent, get(router, "/admin", adminToken).Code)
	assert.Equal(t, http.StatusForbidden, get(router, "/admin", userToken).Code)
}

func TestRecoveryAndErrorMonitor(t *testing.T) {
	users := &stubUsers{revoked: map[string]bool{}, admins: map[int]bool{}}
	monitor := NewErrorMonitor()
	router := newTestRouter(users, monitor)

	w := get(router, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	get(router, "/me", "")
	get(router, "/me", "")

	stats := monitor.Stats()
	assert.Equal(t, 1, stats.ByCode[errors.ErrInternal])
	assert.Equal(t, 2, stats.ByCode[errors.ErrUnauthorized])
	assert.Equal(t, 1, stats.ByPath["/panic"])
	assert.Equal(t, 2, stats.ByPath["/me"])
}
