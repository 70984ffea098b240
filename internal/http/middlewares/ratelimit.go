package middlewares

import (
	"net"
	"net/http"
	"strconv"

	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/rate"
	"github.com/varela-dev/multipass/internal/tenant"
)

// RateKey arma la key del limiter: tenant si hay, si no la IP del cliente.
func RateKey(r *http.Request) string {
	if t, ok := tenant.FromContext(r.Context()); ok {
		return "tenant:" + t.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// WithRateLimit corta con 429 cuando la ventana se agota. Si el limiter
// falla (redis caído) deja pasar: rate limiting degrada, no tumba el login.
func WithRateLimit(l rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), RateKey(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
				writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", 4201)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
