package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/memoryctl/memoryctl/internal/ratelimit"
)

const defaultBodyLimit = 1 * 1024 * 1024 // 1MB

// apiKeyAuthMiddleware checks for a valid API key on every request but
// the health check. No-op if apiKey is empty. Grounded on the teacher's
// internal/api/middleware.go APIKeyAuthMiddleware.
func apiKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.Request.URL.Path == "/api/v1/health" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] == apiKey {
				c.Next()
				return
			}
		}
		if c.GetHeader("X-API-Key") == apiKey {
			c.Next()
			return
		}

		errorResponse(c, http.StatusUnauthorized, "invalid or missing API key")
		c.Abort()
	}
}

// routeToToolCategory maps a facade route to a rate-limiter bucket name.
func routeToToolCategory(path, method string) string {
	switch {
	case strings.Contains(path, "/search"):
		return "search"
	case strings.Contains(path, "/maintain") || strings.Contains(path, "/promote") || strings.Contains(path, "/cluster"):
		return "maintenance"
	case method == "POST" && strings.HasSuffix(path, "/memories"):
		return "store_memory"
	default:
		return "default"
	}
}

// rateLimitMiddleware applies the shared token-bucket limiter per route
// category. Grounded on the teacher's internal/api/middleware.go
// RateLimitMiddleware/internal/ratelimit.
func rateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || !limiter.IsEnabled() {
			c.Next()
			return
		}

		category := routeToToolCategory(c.Request.URL.Path, c.Request.Method)
		result := limiter.Allow(category)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			errorResponse(c, http.StatusTooManyRequests,
				fmt.Sprintf("rate limit exceeded for %s, retry after %ds", result.LimitType, retryAfter))
			c.Abort()
			return
		}
		c.Next()
	}
}

func maxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			errorResponse(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large, maximum %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
