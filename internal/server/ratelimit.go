package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter keyed by client IP and backed by redis INCR/EXPIRE.
// Without a redis client, or when redis errors, requests are let through.
type RateLimiter struct {
	client  *redis.Client
	limit   int
	window  time.Duration
	metrics *Metrics
	logger  *slog.Logger
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration, metrics *Metrics, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		client:  client,
		limit:   limit,
		window:  window,
		metrics: metrics,
		logger:  logger,
	}
}

// key format: rl:<scope>:<window_seconds>:<ip>
func (l *RateLimiter) key(scope string, r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return "rl:" + scope + ":" + strconv.FormatInt(int64(l.window.Seconds()), 10) + ":" + ip
}

func (l *RateLimiter) Middleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || l.client == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := l.key(scope, r)
			val, err := l.client.Incr(ctx, key).Result()
			if err != nil {
				l.logger.WarnContext(ctx, "rate limiter unavailable", "error", err)
				w.Header().Set("X-RateLimit-Error", "redis-error")
				next.ServeHTTP(w, r)
				return
			}
			if val == 1 {
				if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
					l.logger.WarnContext(ctx, "rate limiter expire", "key", key, "error", err)
				}
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(l.limit)-val), 10))

			if val > int64(l.limit) {
				l.metrics.rlBlocked.WithLabelValues(scope).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				respondWithError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}

			l.metrics.rlRequests.WithLabelValues(scope).Inc()
			next.ServeHTTP(w, r)
		})
	}
}
