package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fashion-backend/internal/common"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// httpClient 承运商 JSON API 的公共调用逻辑
type httpClient struct {
	baseURL    string
	headers    map[string]string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func newHTTPClient(baseURL string, headers map[string]string, ratePerSecond int) *httpClient {
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	return &httpClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    headers,
		client:     &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		maxRetries: 3,
	}
}

// statusError 承运商返回非 2xx
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("carrier responded %d: %s", e.StatusCode, e.Body)
}

// Temporary 5xx 与 429 可以重试
func (e *statusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// do 发送一次请求并解析 JSON 响应
func (c *httpClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode carrier response: %w", err)
	}
	return nil
}

// doWithRetry 仅用于幂等的查询请求
func (c *httpClient) doWithRetry(ctx context.Context, method, path string, body, out interface{}) error {
	return common.WithRetry(func() error {
		return c.do(ctx, method, path, body, out)
	}, c.maxRetries)
}
