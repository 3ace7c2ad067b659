package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{New(ErrValidation, "bad"), http.StatusBadRequest},
		{New(ErrOrderNotFound, "missing"), http.StatusNotFound},
		{New(ErrRefundNotFound, "missing"), http.StatusNotFound},
		{New(ErrInvalidState, "state"), http.StatusConflict},
		{New(ErrUnsupportedCarrier, "carrier"), http.StatusBadRequest},
		{New(ErrServiceUnavailable, "down"), http.StatusServiceUnavailable},
		{New(ErrExternal, "stripe"), http.StatusBadGateway},
		{New(ErrForbidden, "admin"), http.StatusForbidden},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusOf(tc.err), tc.err.Error())
	}
}

func TestCodeOfUnwrapsChain(t *testing.T) {
	inner := Wrap(ErrExternal, "refund failed", stderrors.New("card_declined"))
	outer := fmt.Errorf("approve: %w", inner)

	assert.Equal(t, ErrExternal, CodeOf(outer))
	assert.True(t, Is(outer, ErrExternal))
	assert.False(t, Is(nil, ErrInternal))
	assert.Equal(t, ErrInternal, CodeOf(stderrors.New("x")))
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("app error", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		HandleError(c, Wrap(ErrExternal, "refund failed", stderrors.New("card_declined")))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, ErrExternal, resp.Code)
		assert.Equal(t, "refund failed", resp.Message)
		assert.Equal(t, "card_declined", resp.Error)
		assert.Len(t, c.Errors, 1)
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		HandleError(c, stderrors.New("smtp: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "smtp: connection refused")
	})
}
