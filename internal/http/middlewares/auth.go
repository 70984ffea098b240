package middlewares

import (
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/session"
	"github.com/varela-dev/multipass/internal/tenant"
)

// BearerToken extrae el token del header Authorization ("" si no hay).
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}

// RequireBearer valida el access token opaco contra el guard y deja el
// Principal en el contexto. El cruce de tenant usa el tenant del request
// si fue resuelto.
func RequireBearer(guard *oauth.Guard, scopes ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := ""
			if t, ok := tenant.FromContext(r.Context()); ok {
				tenantID = t.ID
			}
			p, err := guard.Validate(r.Context(), tenantID, BearerToken(r), scopes...)
			if err != nil {
				oe := oauth.AsError(err)
				w.Header().Set("WWW-Authenticate",
					`Bearer realm="multipass", error="`+oe.Code+`", error_description="`+oe.Description+`"`)
				writeJSONError(w, oe.Status, oe.Code, oe.Description, 2101)
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

// RequireSession valida la cookie de sesión del login web.
func RequireSession(mgr *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(session.CookieName)
			if err != nil || c.Value == "" {
				writeJSONError(w, http.StatusUnauthorized, "login_required", "no active session", 2101)
				return
			}
			claims, err := mgr.Verify(c.Value)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "login_required", "session is invalid or expired", 2101)
				return
			}
			// la sesión vale solo dentro de su tenant
			if t, ok := tenant.FromContext(r.Context()); ok && t.ID != claims.TenantID {
				writeJSONError(w, http.StatusUnauthorized, "login_required", "session belongs to another tenant", 2101)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), claims)))
		})
	}
}
