package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tablyhq/tably/pkg/httputil"
	"github.com/tablyhq/tably/pkg/observability"
)

// RateLimitConfig defines fixed-window rate limiting settings.
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// DefaultRateLimitConfig returns the limit applied to invitation commands.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
	}
}

// Limiter decides whether a keyed request fits within the current window.
// A non-nil error means the backing store failed; callers fail open.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Remaining(ctx context.Context, key string) (int, error)
}

// LocalLimiter is an in-process fixed-window limiter used when no Redis is
// configured. Windows are tracked per key and reset lazily.
type LocalLimiter struct {
	config  *RateLimitConfig
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewLocalLimiter creates an in-process limiter
func NewLocalLimiter(config *RateLimitConfig) *LocalLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &LocalLimiter{
		config:  config,
		windows: make(map[string]*window),
	}
}

// Allow counts the request against the key's current window.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, exists := l.windows[key]
	if !exists || now.Sub(w.start) >= l.config.WindowDuration {
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++
	return w.count <= l.config.RequestsPerWindow, nil
}

// Remaining returns the requests left in the key's current window.
func (l *LocalLimiter) Remaining(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || time.Since(w.start) >= l.config.WindowDuration {
		return l.config.RequestsPerWindow, nil
	}
	remaining := l.config.RequestsPerWindow - w.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Cleanup removes windows that ended, bounding memory on churning key sets.
func (l *LocalLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.config.WindowDuration*2 {
			delete(l.windows, key)
		}
	}
}

// StartCleanup runs Cleanup on the window interval until ctx is cancelled.
func (l *LocalLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per authenticated subject, keyed by
// client address for requests that never passed authentication. Limiter
// backend errors fail open so a rate-limit outage never blocks the API.
type RateLimitMiddleware struct {
	limiter Limiter
	config  *RateLimitConfig
	logger  *observability.Logger
}

// NewRateLimitMiddleware creates a rate limit middleware
func NewRateLimitMiddleware(limiter Limiter, config *RateLimitConfig, logger *observability.Logger) *RateLimitMiddleware {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimitMiddleware{limiter: limiter, config: config, logger: logger}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.key(r)

		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).Warn("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			m.rateLimitExceeded(w)
			return
		}

		if remaining, err := m.limiter.Remaining(r.Context(), key); err == nil {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) key(r *http.Request) string {
	if principal := GetPrincipal(r); principal != nil {
		return "subject:" + principal.Subject
	}
	return "ip:" + getClientIP(r)
}

func (m *RateLimitMiddleware) rateLimitExceeded(w http.ResponseWriter) {
	retryAfter := m.config.WindowDuration.Seconds()
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	httputil.WriteTooManyRequests(w, "rate limit exceeded")
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
