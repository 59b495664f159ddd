// Package ratelimit throttles requests per user agent address with token
// buckets.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/luikyv/go-authorize/internal/slogx"
	"github.com/luikyv/go-authorize/pkg/goidc"
	"golang.org/x/time/rate"
)

const cleanupInterval = 5 * time.Minute

type Config struct {
	// RequestsPerWindow is the number of requests allowed for a key in the
	// window. Zero disables rate limiting.
	RequestsPerWindow int
	Window            time.Duration
	// Burst defaults to RequestsPerWindow.
	Burst int
}

// KeyFunc groups requests that share the same bucket.
type KeyFunc func(r *http.Request) string

// IPKey returns the address of the user agent, considering the headers set
// by proxies.
func IPKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(ip)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type limiter struct {
	buckets     sync.Map
	limit       rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (l *limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}

	b, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.limit, l.burst))
	l.cleanup()
	return b.(*rate.Limiter)
}

// cleanup forgets buckets that are full again, i.e. keys that were idle long
// enough to recover all their tokens.
func (l *limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = time.Now()

	l.buckets.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(l.burst) {
			l.buckets.Delete(key)
		}
		return true
	})
}

// Middleware rejects requests with 429 once the bucket for their key is
// empty. Requests without a key are let through.
func Middleware(config Config, keyFunc KeyFunc) goidc.MiddlewareFunc {
	if config.RequestsPerWindow <= 0 || config.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	burst := config.Burst
	if burst <= 0 {
		burst = config.RequestsPerWindow
	}
	l := &limiter{
		limit:       rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:       burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			b := l.bucket(key)
			if b.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			reservation := b.Reserve()
			retryAfter := max(int(reservation.Delay().Seconds()), 1)
			reservation.Cancel()

			slogx.FromContext(r.Context(), nil).Warn("rate limit exceeded",
				slog.String("key", key),
				slog.String("path", r.URL.Path),
				slog.Int("retry_after", retryAfter),
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "too many requests",
			})
		})
	}
}
