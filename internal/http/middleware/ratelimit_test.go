package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type memCounter struct {
	counts map[string]int64
	keys   []string
	err    error
}

func (m *memCounter) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	m.keys = append(m.keys, key)
	return m.counts[key], nil
}

func limitedEcho(cfg RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.Use(RateLimitMiddleware(cfg))
	e.GET("/clients", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func hit(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/clients", nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_PerIP(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 400_000_000, time.UTC)
	counter := &memCounter{}
	e := limitedEcho(RateLimitConfig{
		Counter:        counter,
		RPS:            2,
		RetryAfterHint: true,
		Now:            func() time.Time { return now },
	})

	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)

	rec := hit(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limited"}`, rec.Body.String())

	// another client has its own window
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.2").Code)
	assert.Contains(t, counter.keys[0], "rl:ip:10.0.0.1:")

	// next window resets
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	counter := &memCounter{}
	e := limitedEcho(RateLimitConfig{Counter: counter, RPS: 0})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	}
	assert.Empty(t, counter.keys)
}

func TestRateLimit_CounterErrorLetsRequestThrough(t *testing.T) {
	e := limitedEcho(RateLimitConfig{Counter: &memCounter{err: errors.New("redis: connection refused")}, RPS: 1})

	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "10.0.0.1").Code)
}
