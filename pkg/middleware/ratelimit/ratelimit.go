package ratelimit

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/umsys/account-api/pkg/errors"
	"github.com/umsys/account-api/pkg/response"
)

// New returns a fixed-window per-IP rate limiter backed by Redis. With a nil
// client the middleware is a pass-through, so the API keeps serving when
// Redis is unavailable.
func New(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = 1000
	}
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		windowStart := time.Now().UTC().Truncate(window).Unix()
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), windowStart)

		ctx := c.Request.Context()
		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			// fail open: a Redis outage must not take down the API
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				logger.Warn("failed to set rate limit expiry", zap.Error(err))
			}
		}

		if count > int64(limit) {
			retryAfter := time.Unix(windowStart, 0).Add(window).Sub(time.Now().UTC())
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}
