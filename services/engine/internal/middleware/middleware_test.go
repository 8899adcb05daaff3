package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/varunvs7692/chaos-negotiator/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKey(t *testing.T) {
	log := logger.New("error", "text")

	t.Run("empty key disables the check", func(t *testing.T) {
		h := APIKey("", log)(okHandler())

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/assess", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("matching key passes", func(t *testing.T) {
		h := APIKey("s3cret", log)(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assess", nil)
		req.Header.Set("X-API-Key", "s3cret")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		h := APIKey("s3cret", log)(okHandler())

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/assess", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error": "invalid or missing api key"}`, rr.Body.String())
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		h := APIKey("s3cret", log)(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/assess", nil)
		req.Header.Set("X-API-Key", "guess")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRateLimit(t *testing.T) {
	log := logger.New("error", "text")

	t.Run("disabled limiter passes everything", func(t *testing.T) {
		cfg := RateLimitConfig{Enabled: false}
		h := RateLimit(cfg, log)(okHandler())

		for i := 0; i < 200; i++ {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rr.Code)
		}
	})

	t.Run("burst exhaustion returns 429", func(t *testing.T) {
		cfg := RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			BurstSize:         3,
			CleanupInterval:   time.Minute,
		}
		h := RateLimit(cfg, log)(okHandler())

		req := func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "10.0.0.1:1234"
			return r
		}

		for i := 0; i < 3; i++ {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req())
			assert.Equal(t, http.StatusOK, rr.Code, "request %d should pass", i)
		}

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req())
		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	})

	t.Run("limits are per client ip", func(t *testing.T) {
		cfg := RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			BurstSize:         1,
			CleanupInterval:   time.Minute,
		}
		h := RateLimit(cfg, log)(okHandler())

		first := httptest.NewRequest(http.MethodGet, "/", nil)
		first.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, first)
		assert.Equal(t, http.StatusOK, rr.Code)

		other := httptest.NewRequest(http.MethodGet, "/", nil)
		other.RemoteAddr = "10.0.0.2:1234"
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, other)
		assert.Equal(t, http.StatusOK, rr.Code, "a different client has its own bucket")
	})
}

func TestRateLimiterCleanupDropsIdleBuckets(t *testing.T) {
	cfg := RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   5 * time.Millisecond,
		IdleExpiry:        time.Millisecond,
	}
	rl := newRateLimiter(cfg, logger.New("error", "text"))
	rl.allow("10.0.0.1")

	deadline := time.After(time.Second)
	for {
		rl.mu.RLock()
		n := len(rl.buckets)
		rl.mu.RUnlock()
		if n == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("idle bucket was never cleaned up")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain uses first hop", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "9.9.9.9:80", "1.2.3.4"},
		{"single forwarded entry", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "9.9.9.9:80", "1.2.3.4"},
		{"real ip fallback", map[string]string{"X-Real-IP": "4.3.2.1"}, "9.9.9.9:80", "4.3.2.1"},
		{"remote addr stripped of port", nil, "9.9.9.9:80", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestRecovererSwallowsPanics(t *testing.T) {
	log := logger.New("error", "text")
	h := Recoverer(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
