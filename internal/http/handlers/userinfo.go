package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/http/middlewares"
	"github.com/varela-dev/multipass/internal/store/core"
)

// NewUserinfoHandler devuelve claims del dueño del access token, filtradas
// por scope: sub y username siempre, profile habilita role y created_at,
// email habilita email. Corre detrás de RequireBearer.
func NewUserinfoHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := middlewares.GetPrincipal(r.Context())
		if p == nil || p.UserID == nil {
			httpx.WriteError(w, http.StatusForbidden, "invalid_token",
				"el token no representa a un usuario", httpx.CodeForbidden)
			return
		}

		u, err := c.Store.GetUserByID(r.Context(), *p.UserID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "usuario inexistente", httpx.CodeUnauthorized)
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}

		claims := map[string]any{
			"sub":       u.ID,
			"tenant_id": u.TenantID,
			"username":  u.Username,
		}
		if p.HasScope("profile") {
			claims["role"] = u.Role
			claims["created_at"] = u.CreatedAt.UTC().Format(time.RFC3339)
		}
		if p.HasScope("email") {
			claims["email"] = u.Email
		}
		httpx.WriteJSON(w, http.StatusOK, claims)
	}
}
