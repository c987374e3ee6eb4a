package http

import (
	"sync"
	"time"
)

const (
	bucketCleanupThreshold = 1 * time.Hour
	cleanupInterval        = 30 * time.Minute
)

// Decision is the outcome of a single rate limit check.
type Decision struct {
	Allowed bool
	// Remaining is the number of requests still allowed in the current window.
	Remaining int
	// RetryIn is set on denial to the time left until the bucket refills.
	RetryIn time.Duration
}

// clientBucket is a fixed-window token bucket. The zero value refills on
// first use.
type clientBucket struct {
	tokens      int
	windowStart time.Time
	lastSeen    time.Time
}

func (b *clientBucket) take(now time.Time, capacity int, window time.Duration) Decision {
	b.lastSeen = now
	if now.Sub(b.windowStart) >= window {
		b.tokens = capacity
		b.windowStart = now
	}
	if b.tokens <= 0 {
		return Decision{RetryIn: window - now.Sub(b.windowStart)}
	}
	b.tokens--
	return Decision{Allowed: true, Remaining: b.tokens}
}

func (b *clientBucket) idle(now time.Time) bool {
	return now.Sub(b.lastSeen) > bucketCleanupThreshold
}

// RateLimiter grants each client capacity requests per window. A client's
// window starts with its first request after the previous one ran out.
type RateLimiter struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	clients  map[string]*clientBucket
	now      func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		capacity:    capacity,
		window:      window,
		clients:     make(map[string]*clientBucket),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Capacity is the number of requests a client may make per window.
func (r *RateLimiter) Capacity() int {
	return r.capacity
}

// Allow spends one of client's requests for the current window.
func (r *RateLimiter) Allow(client string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.clients[client]
	if !ok {
		bucket = &clientBucket{}
		r.clients[client] = bucket
	}
	return bucket.take(r.now(), r.capacity, r.window)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCleanup) })
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCleanup:
			return
		}
	}
}

// cleanup forgets clients that have not sent a request for
// bucketCleanupThreshold.
func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for client, bucket := range r.clients {
		if bucket.idle(now) {
			delete(r.clients, client)
		}
	}
}

func (r *RateLimiter) clientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
