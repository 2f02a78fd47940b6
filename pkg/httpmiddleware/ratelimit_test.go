package httpmiddleware

import (
	"net/http"
	"net/netip"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func from(addr string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := hit(h)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, hit(h).Code)
	}
	w := hit(h)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "rate limit exceeded\n", w.Body.String())
}

func TestRateLimit_OnLimit(t *testing.T) {
	var got error
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		OnLimit: func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		},
	})(okHandler())

	require.Equal(t, http.StatusOK, hit(h).Code)
	assert.Equal(t, http.StatusTeapot, hit(h).Code)
	assert.ErrorIs(t, got, ErrRateLimited)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(RateLimitConfig{Window: time.Minute})(okHandler())

	for range 10 {
		w := hit(h)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_Keys(t *testing.T) {
	tests := []struct {
		name      string
		cfg       RateLimitConfig
		first     func(*http.Request)
		same      func(*http.Request)
		different func(*http.Request)
	}{
		{
			name:      "RemoteAddr",
			first:     from("10.0.0.1:1234"),
			same:      from("10.0.0.1:5678"),
			different: from("10.0.0.2:1234"),
		},
		{
			name: "XForwardedFor",
			cfg:  RateLimitConfig{TrustedProxies: []netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")}},
			first: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.50, 192.168.1.7")
			},
			same: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.2:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
			},
			different: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.51")
			},
		},
		{
			name:  "UntrustedForwardedFor",
			first: func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50") },
			// Rotating the header from the same peer does not reset the budget.
			same:      func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.99") },
			different: from("10.0.0.9:1234"),
		},
		{
			name: "KeyFunc",
			cfg: RateLimitConfig{KeyFunc: func(r *http.Request) string {
				return r.Header.Get("Authorization")
			}},
			first:     func(r *http.Request) { r.Header.Set("Authorization", "Bearer a") },
			same:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer a") },
			different: func(r *http.Request) { r.Header.Set("Authorization", "Bearer b") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Max, cfg.Window = 1, time.Minute
			h := RateLimit(cfg)(okHandler())

			assert.Equal(t, http.StatusOK, hit(h, tt.first).Code)
			assert.Equal(t, http.StatusOK, hit(h, tt.different).Code)
			assert.Equal(t, http.StatusTooManyRequests, hit(h, tt.same).Code)
		})
	}
}

func TestLimiter_Sweep(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Now()

	_, _, ok := l.take("a", now)
	require.True(t, ok)
	_, _, ok = l.take("a", now)
	require.False(t, ok)

	l.sweep(now.Add(3 * time.Minute))
	assert.Empty(t, l.counters)

	_, _, ok = l.take("a", now.Add(3*time.Minute))
	assert.True(t, ok)
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
	}

	tests := []struct {
		name   string
		remote string
		header http.Header
		want   string
	}{
		{"Direct", "203.0.113.7:4000", nil, "203.0.113.7"},
		{"UntrustedPeerIgnoresHeaders", "203.0.113.7:4000",
			http.Header{"X-Forwarded-For": {"198.51.100.1"}, "X-Real-Ip": {"198.51.100.2"}}, "203.0.113.7"},
		{"TrustedPeer", "10.1.2.3:4000", http.Header{"X-Forwarded-For": {"198.51.100.1"}}, "198.51.100.1"},
		{"SkipsTrustedHops", "10.1.2.3:4000",
			http.Header{"X-Forwarded-For": {"198.51.100.9, 198.51.100.1, 10.0.0.5"}}, "198.51.100.1"},
		{"MultipleHeaders", "10.1.2.3:4000",
			http.Header{"X-Forwarded-For": {"198.51.100.9", "198.51.100.1"}}, "198.51.100.1"},
		{"AllHopsTrusted", "10.1.2.3:4000", http.Header{"X-Forwarded-For": {"10.0.0.4, 10.0.0.5"}}, "10.0.0.4"},
		{"RealIP", "10.1.2.3:4000", http.Header{"X-Real-Ip": {"198.51.100.3"}}, "198.51.100.3"},
		{"IPv6Peer", "[::1]:4000", http.Header{"X-Forwarded-For": {"2001:db8::1"}}, "2001:db8::1"},
		{"NoPort", "203.0.113.7", nil, "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header[k] = v
			}
			assert.Equal(t, tt.want, ClientIP(r, trusted))
		})
	}
}
