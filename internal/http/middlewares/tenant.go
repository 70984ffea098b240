package middlewares

import (
	"net/http"

	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/tenant"
)

// WithTenant corre el resolver y, si hay tenant, lo deja en el contexto del
// request. No resolver no es error acá: los endpoints que lo exigen usan
// RequireTenant.
func WithTenant(resolver *tenant.Resolver, count func(result string)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.Resolve(r.Context(), r.Header, r.Host, r.URL.Path)
			if err != nil {
				if count != nil {
					count("error")
				}
				logger.From(r.Context()).Error("tenant resolution failed", logger.Err(err))
				writeJSONError(w, http.StatusServiceUnavailable, "temporarily_unavailable", "tenant lookup failed", 4101)
				return
			}
			if t == nil {
				if count != nil {
					count("miss")
				}
				next.ServeHTTP(w, r)
				return
			}
			if count != nil {
				count("hit")
			}
			next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
		})
	}
}

// RequireTenant corta con 400 si el request no trae tenant resoluble.
func RequireTenant() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := tenant.FromContext(r.Context()); !ok {
				writeJSONError(w, http.StatusBadRequest, "invalid_request", "tenant could not be resolved", 3101)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
