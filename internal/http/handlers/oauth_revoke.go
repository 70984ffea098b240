package handlers

import (
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/tenant"
)

// NewRevokeHandler implementa RFC 7009: el client autenticado revoca un
// token propio. Token desconocido o ajeno responde 200 igual, sin filtrar.
func NewRevokeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", httpx.CodeInvalidForm)
			return
		}
		if !httpx.ReadForm(w, r) {
			return
		}

		ten, _ := tenant.FromContext(r.Context())
		clientID, clientSecret := clientCredentials(r)
		value := strings.TrimSpace(r.PostForm.Get("token"))

		if err := c.Engine.Revoke(r.Context(), ten, clientID, clientSecret, value); err != nil {
			httpx.WriteOAuthError(w, err)
			return
		}
		noStore(w)
		w.WriteHeader(http.StatusOK)
	}
}
