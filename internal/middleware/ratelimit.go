package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/geo-attendance-api/pkg/errors"
	"github.com/noah-isme/geo-attendance-api/pkg/ratelimit"
	"github.com/noah-isme/geo-attendance-api/pkg/response"
)

// RateLimit throttles requests per authenticated user, falling back to the
// client IP for anonymous callers. A nil limiter disables throttling.
func RateLimit(limiter *ratelimit.Limiter, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if claims := CurrentUser(c); claims != nil {
			key = "user:" + claims.UserID
		}

		at := now()
		decision := limiter.Allow(c.Request.Context(), key, at)
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			retry := int(decision.ResetAt.Sub(at).Seconds())
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
