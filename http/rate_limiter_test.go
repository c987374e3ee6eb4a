package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newFakeLimiter(t *testing.T, capacity int, window time.Duration) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(capacity, window)
	rl.now = clock.now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestRateLimiter_AllowsUpToCapacity(t *testing.T) {
	rl, _ := newFakeLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		d := rl.Allow("10.0.0.1")
		assert.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 2-i, d.Remaining)
	}
	d := rl.Allow("10.0.0.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryIn)

	assert.True(t, rl.Allow("10.0.0.2").Allowed, "other clients have their own bucket")
}

func TestRateLimiter_RefillsAfterWindow(t *testing.T) {
	rl, clock := newFakeLimiter(t, 1, time.Minute)

	require.True(t, rl.Allow("client").Allowed)

	clock.t = clock.t.Add(20 * time.Second)
	d := rl.Allow("client")
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryIn)

	clock.t = clock.t.Add(40 * time.Second)
	assert.True(t, rl.Allow("client").Allowed)
}

func TestRateLimiter_ZeroCapacityDeniesEverything(t *testing.T) {
	rl, _ := newFakeLimiter(t, 0, time.Minute)

	d := rl.Allow("client")
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryIn)
}

func TestRateLimiter_CleanupForgetsIdleClients(t *testing.T) {
	rl, clock := newFakeLimiter(t, 5, time.Minute)

	rl.Allow("idle")
	rl.Allow("busy")
	clock.t = clock.t.Add(bucketCleanupThreshold / 2)
	rl.Allow("active")
	rl.Allow("busy")
	clock.t = clock.t.Add(bucketCleanupThreshold/2 + time.Second)

	rl.cleanup()
	assert.Equal(t, 2, rl.clientCount())
}

func TestRateLimiter_StopTwice(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}

func TestRateLimitMiddleware_RejectsWithRetryAfter(t *testing.T) {
	rl, _ := newFakeLimiter(t, 1, time.Minute)
	router, _ := newTestRouter(t, rl)

	first := postJSON(t, router, "/loan/installment", `{"amount":120000,"interestRate":0.125,"term":60}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := postJSON(t, router, "/loan/installment", `{"amount":120000,"interestRate":0.125,"term":60}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "health checks are not rate limited")
}
