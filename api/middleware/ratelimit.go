package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageaudit/config"
	"github.com/use-agent/pageaudit/models"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter     *rate.Limiter
	windowStart time.Time
	lastSeen    time.Time
}

// RateLimit returns per-identity (API key or client IP) fixed-window rate
// limiting middleware powered by golang.org/x/time/rate.
//
// Each identity may make cfg.Requests requests per cfg.Window, counted from
// its first request in the window. A window's budget is a limiter with no
// refill, replaced when the window ends. Rejections carry Retry-After set to
// the time left in the window. Entries idle for longer than two windows are
// evicted by a background goroutine.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	return rateLimit(cfg, time.Now)
}

func rateLimit(cfg config.RateLimitConfig, now func() time.Time) gin.HandlerFunc {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var mu sync.Mutex
	limiters := make(map[string]*limiterEntry)

	// allow reports whether identity may proceed and, if not, how long until
	// its window resets.
	allow := func(identity string) (bool, time.Duration) {
		t := now()
		mu.Lock()
		defer mu.Unlock()
		entry, ok := limiters[identity]
		if !ok || t.Sub(entry.windowStart) >= cfg.Window {
			entry = &limiterEntry{
				limiter:     rate.NewLimiter(0, cfg.Requests),
				windowStart: t,
			}
			limiters[identity] = entry
		}
		entry.lastSeen = t
		if entry.limiter.AllowN(t, 1) {
			return true, 0
		}
		return false, entry.windowStart.Add(cfg.Window).Sub(t)
	}

	go func() {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := now().Add(-2 * cfg.Window)
			mu.Lock()
			for id, entry := range limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(limiters, id)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString(apiKeyContextKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if ok, reset := allow(identity); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(reset.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error: models.MsgRateLimited,
			})
			return
		}

		c.Next()
	}
}
