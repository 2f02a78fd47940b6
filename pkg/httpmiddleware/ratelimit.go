package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// ErrRateLimited is passed to RateLimitConfig.OnLimit.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables
	// limiting.
	Max    int
	Window time.Duration
	// KeyFunc extracts the rate limit key from a request. Defaults to the
	// client IP as reported by ClientIP.
	KeyFunc func(*http.Request) string
	// TrustedProxies lists the peers whose forwarding headers are honored
	// by the default KeyFunc.
	TrustedProxies []netip.Prefix
	// OnLimit writes the rejection. Defaults to a plain 429 response.
	OnLimit ErrorWriter
}

// counter tracks requests in the current and the previous fixed window.
type counter struct {
	prev, curr float64
	start      time.Time
}

type limiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		trusted := cfg.TrustedProxies
		cfg.KeyFunc = func(r *http.Request) string { return ClientIP(r, trusted) }
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		}
	}
	return &limiter{cfg: cfg, counters: make(map[string]*counter)}
}

// take records a request for key if the sliding window estimate is below
// Max. It reports the remaining budget and when the current window ends.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.cfg.Window
	c, found := l.counters[key]
	if !found {
		c = &counter{start: now.Truncate(window)}
		l.counters[key] = c
	}
	if elapsed := now.Sub(c.start); elapsed >= window {
		if elapsed >= 2*window {
			c.prev = 0
		} else {
			c.prev = c.curr
		}
		c.curr = 0
		c.start = now.Truncate(window)
	}

	// Weight the previous window by its overlap with the sliding window.
	overlap := max(0, 1-now.Sub(c.start).Seconds()/window.Seconds())
	estimate := c.prev*overlap + c.curr
	reset = c.start.Add(window)
	if estimate >= float64(l.cfg.Max) {
		return 0, reset, false
	}
	c.curr++
	return max(0, int(float64(l.cfg.Max)-estimate-1)), reset, true
}

// sweep drops counters idle for two full windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.cfg.Window {
			delete(l.counters, key)
		}
	}
}

func (l *limiter) sweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// RateLimit returns a middleware that enforces a per-key sliding window rate
// limit. Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; rejected requests also get Retry-After.
//
// Counters are never evicted; use RateLimitWithCleanup for long running
// servers.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is like RateLimit but evicts idle counters every two
// windows until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	if cfg.Max > 0 {
		go l.sweepEvery(ctx, 2*cfg.Window)
	}
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	if l.cfg.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, reset, ok := l.take(l.cfg.KeyFunc(r), time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			wait := max(0, time.Until(reset))
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			l.cfg.OnLimit(w, r, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the address of the client that sent r. Forwarding headers
// count only when the connecting peer is in trusted: X-Forwarded-For is then
// walked from the right and the first hop outside trusted wins, with
// X-Real-IP as the fallback.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !isTrusted(peer, trusted) {
		return peer
	}
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		first := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) {
				return hop
			}
			first = hop
		}
		if first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func isTrusted(addr string, trusted []netip.Prefix) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}
