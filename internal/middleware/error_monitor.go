package middleware

import (
	"fashion-backend/internal/errors"
	"fashion-backend/internal/util"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorStats 错误统计快照
type ErrorStats struct {
	ByCode map[errors.ErrorCode]int `json:"by_code"`
	ByPath map[string]int           `json:"by_path"`
}

type ErrorMonitor struct {
	errorCounts map[errors.ErrorCode]int
	pathCounts  map[string]int
	mu          sync.RWMutex
}

func NewErrorMonitor() *ErrorMonitor {
	return &ErrorMonitor{
		errorCounts: make(map[errors.ErrorCode]int),
		pathCounts:  make(map[string]int),
	}
}

func (m *ErrorMonitor) RecordError(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCounts[errors.CodeOf(err)]++
	m.pathCounts[path]++
}

func (m *ErrorMonitor) Stats() ErrorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := ErrorStats{
		ByCode: make(map[errors.ErrorCode]int, len(m.errorCounts)),
		ByPath: make(map[string]int, len(m.pathCounts)),
	}
	for code, count := range m.errorCounts {
		stats.ByCode[code] = count
	}
	for path, count := range m.pathCounts {
		stats.ByPath[path] = count
	}
	return stats
}

func ErrorMonitorMiddleware(monitor *ErrorMonitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		for _, e := range c.Errors {
			monitor.RecordError(path, e.Err)
			if errors.StatusOf(e.Err) >= 500 {
				util.Logger.Error("请求处理错误",
					zap.Int("error_code", int(errors.CodeOf(e.Err))),
					zap.Error(e.Err),
					zap.String("path", path),
					zap.String("method", c.Request.Method))
			}
		}
	}
}
