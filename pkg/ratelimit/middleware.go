package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strings"

	"ferrylink/internal/shared/utils/response"
	"ferrylink/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware picks the limit type from the matched route
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit(c, rateLimiter, getRateLimitType(c.FullPath()))
	}
}

// MiddlewareFor applies a fixed limit type, for route groups that know their own class
func MiddlewareFor(rateLimiter *RateLimiter, limitType RateLimitType) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit(c, rateLimiter, limitType)
	}
}

func limit(c *gin.Context, rateLimiter *RateLimiter, limitType RateLimitType) {
	clientIP := c.ClientIP()

	result, err := rateLimiter.IsAllowed(c.Request.Context(), clientIP, limitType)
	if err != nil {
		// Counter store unavailable: let the request through rather than drop gateway traffic
		logger.GetDefault().WithError(err).Warn("Rate limit check failed", "ip", clientIP, "type", string(limitType))
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime))

	if !result.Allowed {
		retryAfter := int64(math.Ceil(result.RetryAfter.Seconds()))
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), clientIP, c.FullPath(), retryAfter)

		response.RespondJSON(c, "error", http.StatusTooManyRequests,
			"Rate limit exceeded", nil, map[string]interface{}{
				"limit":       result.Limit,
				"reset_time":  result.ResetTime,
				"retry_after": retryAfter,
			})
		c.Abort()
		return
	}

	c.Next()
}

func getRateLimitType(path string) RateLimitType {
	switch {
	case strings.HasPrefix(path, "/health"):
		return RateLimitTypeHealth
	case strings.Contains(path, "/admin/"):
		return RateLimitTypeAdmin
	case strings.Contains(path, "/payments/notification"):
		return RateLimitTypeWebhook
	default:
		return RateLimitTypeDefault
	}
}
