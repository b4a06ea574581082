package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, cfg *Config) (*RateLimiter, *time.Time) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(client, cfg)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestSlidingWindow(t *testing.T) {
	rl, clock := newLimiter(t, &Config{
		Enabled:         true,
		WindowDuration:  time.Minute,
		WebhookRequests: 3,
		DefaultRequests: 10,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeWebhook)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, 3-(i+1), res.Remaining)
		*clock = clock.Add(10 * time.Second)
	}

	res, err := rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeWebhook)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	// Oldest entry at t0 frees its slot at t0+60s; we are at t0+30s
	assert.Equal(t, 30*time.Second, res.RetryAfter)

	// Other clients and other limit types are independent
	res, err = rl.IsAllowed(ctx, "10.0.0.2", RateLimitTypeWebhook)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	res, err = rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeDefault)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// Once the oldest entry leaves the window a slot opens again
	*clock = clock.Add(31 * time.Second)
	res, err = rl.IsAllowed(ctx, "10.0.0.1", RateLimitTypeWebhook)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestSameMillisecondRequestsAreCountedSeparately(t *testing.T) {
	rl, _ := newLimiter(t, &Config{Enabled: true, WindowDuration: time.Minute, WebhookRequests: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := rl.IsAllowed(ctx, "10.0.0.9", RateLimitTypeWebhook)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := rl.IsAllowed(ctx, "10.0.0.9", RateLimitTypeWebhook)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestDisabledAndWhitelisted(t *testing.T) {
	rl, _ := newLimiter(t, &Config{Enabled: false, WebhookRequests: 1})
	for i := 0; i < 5; i++ {
		res, err := rl.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeWebhook)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	rl, _ = newLimiter(t, &Config{Enabled: true, WebhookRequests: 1, WhitelistedIPs: []string{"10.0.0.5"}})
	for i := 0; i < 5; i++ {
		res, err := rl.IsAllowed(context.Background(), "10.0.0.5", RateLimitTypeWebhook)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}

func TestMiddleware_RejectsWithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, _ := newLimiter(t, &Config{Enabled: true, WindowDuration: time.Minute, WebhookRequests: 1})

	r := gin.New()
	r.POST("/api/v1/payments/notification", Middleware(rl), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/notification", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		r.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := send()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestGetRateLimitType(t *testing.T) {
	assert.Equal(t, RateLimitTypeWebhook, getRateLimitType("/api/v1/payments/notification"))
	assert.Equal(t, RateLimitTypeAdmin, getRateLimitType("/api/v1/admin/payments/:order_id/replay"))
	assert.Equal(t, RateLimitTypeHealth, getRateLimitType("/health"))
	assert.Equal(t, RateLimitTypeDefault, getRateLimitType("/api/v1/bookings/:code"))
}
