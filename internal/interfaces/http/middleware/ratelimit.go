package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/utils"
)

// RateLimiter is a fixed-window counter per client IP kept in Redis, so the
// limit holds across every server instance sharing that Redis.
type RateLimiter struct {
	client *redis.Client
	scope  string
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, scope string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		scope:  scope,
		limit:  int64(limit),
		window: window,
	}
}

// Limit rejects requests over the limit with 429. Requests pass when Redis
// cannot be reached.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := biztime.NowUTC()
		bucket := now.Unix() / int64(rl.window/time.Second)
		key := fmt.Sprintf("ratelimit:%s:%s:%d", rl.scope, c.ClientIP(), bucket)

		var incr *redis.IntCmd
		_, err := rl.client.TxPipelined(c.Request.Context(), func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(c.Request.Context(), key)
			pipe.Expire(c.Request.Context(), key, rl.window+time.Second)
			return nil
		})
		if err != nil {
			c.Next()
			return
		}

		if incr.Val() > rl.limit {
			windowEnd := time.Unix((bucket+1)*int64(rl.window/time.Second), 0)
			c.Header("Retry-After", strconv.Itoa(int(windowEnd.Sub(now).Seconds())+1))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
