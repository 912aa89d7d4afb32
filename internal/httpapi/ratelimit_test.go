package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"provcore/internal/ratelimit"
)

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
}

func (s stubLimiter) Allow(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return s.decision, s.err
}

func TestVerifyRateLimit(t *testing.T) {
	env := newTestEnv(t, envParams{
		cfg:     Config{RateLimitRequests: 2, RateLimitWindow: time.Minute},
		limiter: ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{}),
	})
	env.registerProduct(t)

	for i, wantRemaining := range []string{"1", "0"} {
		w := env.do(t, http.MethodGet, "/v1/products/1/verify", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, w.Code)
		}
		if got := w.Header().Get("RateLimit-Limit"); got != "2" {
			t.Fatalf("request %d RateLimit-Limit = %q", i+1, got)
		}
		if got := w.Header().Get("RateLimit-Remaining"); got != wantRemaining {
			t.Fatalf("request %d RateLimit-Remaining = %q, want %q", i+1, got, wantRemaining)
		}
	}

	w := env.do(t, http.MethodGet, "/v1/products/1/verify", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("limited status = %d, want 429", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "RATE_LIMITED" {
		t.Fatalf("code = %q", resp.Code)
	}
	if w.Header().Get("RateLimit-Reset") == "" {
		t.Fatalf("missing RateLimit-Reset header")
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestVerifyRateLimitScopedToVerify(t *testing.T) {
	env := newTestEnv(t, envParams{
		cfg:     Config{RateLimitRequests: 1, RateLimitWindow: time.Minute},
		limiter: ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{}),
	})
	env.registerProduct(t)

	if w := env.do(t, http.MethodGet, "/v1/products/1/verify", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first verify status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/v1/products/1/verify", "", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second verify status = %d, want 429", w.Code)
	}
	// Plain reads are not limited.
	if w := env.do(t, http.MethodGet, "/v1/products/1", "", nil); w.Code != http.StatusOK {
		t.Fatalf("read status = %d after verify limit hit", w.Code)
	}
}

func TestVerifyRateLimiterFailsOpen(t *testing.T) {
	env := newTestEnv(t, envParams{
		cfg:     Config{RateLimitRequests: 1, RateLimitWindow: time.Minute},
		limiter: stubLimiter{err: errors.New("redis down")},
	})
	env.registerProduct(t)

	if w := env.do(t, http.MethodGet, "/v1/products/1/verify", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 on limiter outage", w.Code)
	}
}

func TestVerifyRateLimiterFailsClosed(t *testing.T) {
	env := newTestEnv(t, envParams{
		cfg:     Config{RateLimitRequests: 1, RateLimitWindow: time.Minute, RateLimitFailClosed: true},
		limiter: stubLimiter{err: errors.New("redis down")},
	})
	env.registerProduct(t)

	w := env.do(t, http.MethodGet, "/v1/products/1/verify", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 when failing closed", w.Code)
	}
	if resp := decodeError(t, w); resp.Code != "RATE_LIMIT_UNAVAILABLE" {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestVerifyWithoutLimiter(t *testing.T) {
	env := newTestEnv(t, envParams{cfg: Config{RateLimitRequests: 5, RateLimitWindow: time.Minute}})
	env.registerProduct(t)

	w := env.do(t, http.MethodGet, "/v1/products/1/verify", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("RateLimit-Limit"); got != "" {
		t.Fatalf("unexpected RateLimit-Limit header %q without a limiter", got)
	}
}
