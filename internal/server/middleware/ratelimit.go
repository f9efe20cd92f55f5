package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abhishek3950/AIvsHuman/internal/domain"
)

// RateLimitConfig bounds requests per client. A non-positive Limit disables
// limiting.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	// ReadsToo also limits GET, HEAD and OPTIONS.
	ReadsToo bool
	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// RateLimit limits each client to cfg.Limit requests per cfg.Window. When
// the limiter backend fails, requests are let through.
func RateLimit(limiter domain.RateLimiter, cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(int(cfg.Window/time.Second), 1))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Limit <= 0 || (!cfg.ReadsToo && isRead(r.Method)) {
				next.ServeHTTP(w, r)
				return
			}

			key := "api:" + clientIP(r, cfg.TrustProxy)
			allowed, err := limiter.Allow(r.Context(), key, cfg.Limit, cfg.Window)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", retryAfter)
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// clientIP is the first X-Forwarded-For hop or X-Real-IP when trustProxy is
// set, and the connection's remote host otherwise.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
