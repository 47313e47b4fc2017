// Throttling for requests that launch simulation work. Reads are never
// throttled; each accepted POST costs one token from a per-client window.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RunThrottle bounds how many simulations a single client may launch per
// window. Windows are fixed: the first launch opens one, and the count
// resets when it elapses.
type RunThrottle struct {
	mu      sync.Mutex
	clients map[string]*launchWindow
	limit   int
	window  time.Duration
	now     func() time.Time // stubbed in tests
}

type launchWindow struct {
	used    int
	resetAt time.Time
}

// NewRunThrottle allows limit launches per client per window.
func NewRunThrottle(limit int, window time.Duration) *RunThrottle {
	return &RunThrottle{
		clients: make(map[string]*launchWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Take consumes one launch token for the client. ok reports whether the
// launch may proceed; when it may not, retryAfter is the whole seconds
// until the client's window resets.
func (t *RunThrottle) Take(client string) (ok bool, retryAfter int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	lw := t.clients[client]
	if lw == nil || !now.Before(lw.resetAt) {
		t.sweep(now)
		t.clients[client] = &launchWindow{used: 1, resetAt: now.Add(t.window)}
		return true, 0
	}
	if lw.used < t.limit {
		lw.used++
		return true, 0
	}
	return false, int(lw.resetAt.Sub(now).Seconds()) + 1
}

// sweep drops windows that have elapsed. Caller holds mu.
func (t *RunThrottle) sweep(now time.Time) {
	for client, lw := range t.clients {
		if !now.Before(lw.resetAt) {
			delete(t.clients, client)
		}
	}
}

// throttled applies the throttle to POST requests only. GET polling of
// session state and metrics passes through untouched.
func throttled(t *RunThrottle, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next(w, r)
			return
		}
		ok, retry := t.Take(clientAddr(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(w, "launch limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// clientAddr identifies the caller: the first X-Forwarded-For hop when
// proxied, otherwise the host part of the remote address.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
