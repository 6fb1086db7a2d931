package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/simp-lee/gocontacts/internal/notify"
	"github.com/simp-lee/gocontacts/internal/pkg"
)

const (
	rateLimitMaxClients = 10000
	rateLimitClientTTL  = 10 * time.Minute
	rateLimitMessage    = "Too many requests. Please slow down."
)

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	// RPS is the sustained number of requests per second per client IP.
	RPS float64
	// Burst is the bucket size.
	Burst int
}

// RateLimit returns a gin middleware that limits each client IP to a token
// bucket of cfg.RPS requests per second with cfg.Burst headroom. Buckets of
// idle clients are forgotten after a while.
//
// Rejected requests get 429 with a Retry-After header. htmx requests also get
// an error toast and no swap.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = int(math.Ceil(cfg.RPS))
	}

	limiters := expirable.NewLRU[string, *rate.Limiter](rateLimitMaxClients, nil, rateLimitClientTTL)
	limiterFor := func(ip string) *rate.Limiter {
		if l, ok := limiters.Get(ip); ok {
			return l
		}
		l := rate.NewLimiter(rate.Limit(cfg.RPS), burst)
		limiters.Add(ip, l)
		return l
	}

	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/cfg.RPS))))

	return func(c *gin.Context) {
		if limiterFor(c.ClientIP()).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", retryAfter)
		if pkg.IsHTMX(c) {
			c.Header("HX-Reswap", "none")
			pkg.SetToastTrigger(c, []notify.Notification{notify.Failure(rateLimitMessage)})
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":    http.StatusTooManyRequests,
			"message": "too many requests",
			"data":    nil,
		})
	}
}
