package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smallbiznis-referral/pkg/errutil"
)

// Middleware limits requests per client IP within scope. Limiter failures let
// the request through so a redis outage does not take public links down.
func Middleware(l Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), scope, c.ClientIP())
		if err != nil {
			zap.L().Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			err := errutil.TooManyRequest("too many requests", nil)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errutil.From(err).JSON())
			return
		}

		c.Next()
	}
}
