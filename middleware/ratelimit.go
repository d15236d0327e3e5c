package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"writingstuff/pkg/apperror"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per account. Buckets idle for
// longer than limiterIdle are swept on access.
type RateLimiter struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	users     map[string]*userLimiter
	lastSweep time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		users:     make(map[string]*userLimiter),
		lastSweep: time.Now(),
	}
}

// Allow reports whether userID may make another request now.
func (l *RateLimiter) Allow(userID string) bool {
	// A non-positive rate disables limiting.
	if l.perSecond <= 0 {
		return true
	}

	now := time.Now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) > limiterIdle {
		for id, u := range l.users {
			if now.Sub(u.lastSeen) > limiterIdle {
				delete(l.users, id)
			}
		}
		l.lastSweep = now
	}
	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.users[userID] = u
	}
	u.lastSeen = now
	l.mu.Unlock()

	return u.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the caller's budget with 429. It must
// run inside Auth.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(UserID(r.Context())) {
			retry := 1
			if l.perSecond > 0 && l.perSecond < 1 {
				retry = int(1/float64(l.perSecond)) + 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			apperror.Write(w, apperror.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
