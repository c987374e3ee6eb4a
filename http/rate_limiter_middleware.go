package http

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
)

// RateLimitMiddleware rejects clients, identified by remote IP, that have
// used up their bucket. Every response carries the client's quota in
// X-RateLimit-Limit and X-RateLimit-Remaining.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			decision := limiter.Allow(ip)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Capacity()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				logger.Info("rate limit exceeded", "client", ip, "request_id", RequestIDFrom(r.Context()))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(decision.RetryIn.Seconds()))))
				writeError(w, logger, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
