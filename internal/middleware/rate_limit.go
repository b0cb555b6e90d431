package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPごとのトークンバケット
type RateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*limiterEntry
	rate  rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

func NewRateLimiter(r rate.Limit, burst int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		ips:   make(map[string]*limiterEntry),
		rate:  r,
		burst: burst,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.ips[ip]
	if !ok {
		//ついでに古いエントリを掃除（mapが増え続けないように）
		if len(rl.ips) > 1024 {
			for k, v := range rl.ips {
				if now.Sub(v.lastSeen) > rl.ttl {
					delete(rl.ips, k)
				}
			}
		}
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.ips[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (rl *RateLimiter) Allow(ip string) bool {
	return rl.get(ip).Allow()
}

// 超えたら429
func RateLimit(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				return deny(c, http.StatusTooManyRequests, "", "too many requests")
			}
			return next(c)
		}
	}
}
