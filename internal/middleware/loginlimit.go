package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/photorestore/restore-server-go/internal/audit"
	apperrors "github.com/photorestore/restore-server-go/internal/errors"
	"github.com/photorestore/restore-server-go/internal/httputil"
)

const (
	DefaultLoginMaxAttempts = 5
	DefaultLoginWindow      = time.Minute
)

type loginWindow struct {
	count int
	start time.Time
}

// LoginRateLimiter throttles login attempts per client host with a fixed
// window; the source port is ignored. Stale windows are swept on every window
// boundary.
type LoginRateLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	attempts    map[string]*loginWindow
	lastSweep   time.Time
	now         func() time.Time
}

func NewLoginRateLimiter(maxAttempts int, window time.Duration) *LoginRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultLoginMaxAttempts
	}
	if window <= 0 {
		window = DefaultLoginWindow
	}
	return &LoginRateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string]*loginWindow),
		lastSweep:   time.Now(),
		now:         time.Now,
	}
}

func (l *LoginRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		for k, a := range l.attempts {
			if now.Sub(a.start) >= l.window {
				delete(l.attempts, k)
			}
		}
		l.lastSweep = now
	}

	a, ok := l.attempts[key]
	if !ok || now.Sub(a.start) >= l.window {
		l.attempts[key] = &loginWindow{count: 1, start: now}
		return true
	}
	if a.count >= l.maxAttempts {
		return false
	}
	a.count++
	return true
}

func (l *LoginRateLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

func (l *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(audit.RemoteHost(r)) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure,
				Details: map[string]interface{}{"reason": "rate_limited"}})
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			httputil.WriteErrorWithStatus(w, http.StatusTooManyRequests,
				apperrors.RateLimited("Too many login attempts. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}
