package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pwless/pwless/logger"
	"github.com/pwless/pwless/web/entity"
)

// RateLimitConfig configures the per-client rate limit of the public
// ceremony endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyFunc           func(c *gin.Context) string
}

// DefaultRateLimitConfig limits each client IP to 60 requests per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimit counts requests per key in fixed one-minute windows and answers
// 429 above the limit. State is in-process; every instance enforces the limit
// independently.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	var mu sync.Mutex
	windows := make(map[string]*rateWindow)

	return func(c *gin.Context) {
		key := config.KeyFunc(c) + ":" + c.Request.URL.Path
		now := time.Now()

		mu.Lock()
		w, ok := windows[key]
		if !ok || now.After(w.resetAt) {
			w = &rateWindow{resetAt: now.Add(time.Minute)}
			windows[key] = w
		}
		w.count++
		count := w.count
		resetAt := w.resetAt

		// Drop stale windows so the map does not grow without bound.
		if len(windows) > 10000 {
			for k, v := range windows {
				if now.After(v.resetAt) {
					delete(windows, k)
				}
			}
		}
		mu.Unlock()

		remaining := config.RequestsPerMinute - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > config.RequestsPerMinute {
			logger.Warningf("rate limit exceeded for %s", key)
			c.Header("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entity.Msg{
				Success: false,
				Msg:     "too many requests",
			})
			return
		}
		c.Next()
	}
}
