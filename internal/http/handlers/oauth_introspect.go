package handlers

import (
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
)

// NewIntrospectHandler implementa RFC 7662. Hoy no exige client auth;
// cualquier poseedor del valor puede preguntar por él. Endurecerlo implica
// romper integraciones existentes, así que queda detrás del rate limiter.
func NewIntrospectHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", httpx.CodeInvalidForm)
			return
		}
		if !httpx.ReadForm(w, r) {
			return
		}
		value := strings.TrimSpace(r.PostForm.Get("token"))
		hint := strings.TrimSpace(r.PostForm.Get("token_type_hint"))

		in, err := c.Engine.Introspect(r.Context(), value, hint)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		noStore(w)
		httpx.WriteJSON(w, http.StatusOK, in)
	}
}
