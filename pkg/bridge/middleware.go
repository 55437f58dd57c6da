package bridge

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// upgradeLimiter tracks a token bucket per remote IP.
type upgradeLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newUpgradeLimiter allows perMinute upgrade attempts per IP, bursting up to
// the same number. perMinute <= 0 disables limiting.
func newUpgradeLimiter(perMinute int) *upgradeLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &upgradeLimiter{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    perMinute,
	}
}

func (ul *upgradeLimiter) allow(ip string) bool {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	l, ok := ul.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(ul.limit, ul.burst)}
		ul.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter.Allow()
}

// cleanup drops limiters idle for longer than maxIdle.
func (ul *upgradeLimiter) cleanup(maxIdle time.Duration) {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, l := range ul.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(ul.limiters, ip)
		}
	}
}

// rateLimitMiddleware rejects upgrade attempts that exceed the per-IP limit.
func rateLimitMiddleware(ul *upgradeLimiter, next http.Handler) http.Handler {
	if ul == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ul.allow(remoteIP(r)) {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin returns an upgrader origin check. An empty list accepts any
// origin; controllers are embedded boards that rarely send one.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
