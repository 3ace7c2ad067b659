package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type tempErr struct{ temporary bool }

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return e.temporary }

func TestWithRetry(t *testing.T) {
	RetryDelay = time.Millisecond

	// 临时错误会重试直到成功
	calls := 0
	err := WithRetry(func() error {
		calls++
		if calls < 3 {
			return tempErr{temporary: true}
		}
		return nil
	}, 3)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	// 非临时错误立即返回
	calls = 0
	permanent := errors.New("boom")
	err = WithRetry(func() error {
		calls++
		return permanent
	}, 3)
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)

	// 包装后的临时错误同样可以识别
	assert.True(t, IsRetryable(errors.Join(errors.New("wrapped"), tempErr{temporary: true})))
}
