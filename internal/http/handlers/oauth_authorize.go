package handlers

import (
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/http/middlewares"
	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/tenant"
)

func parseAuthorizeRequest(q map[string][]string) *oauth.AuthorizeRequest {
	get := func(k string) string {
		if vs := q[k]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}
	return &oauth.AuthorizeRequest{
		ResponseType:        get("response_type"),
		ClientID:            get("client_id"),
		RedirectURI:         get("redirect_uri"),
		Scope:               get("scope"),
		State:               get("state"),
		Nonce:               get("nonce"),
		CodeChallenge:       get("code_challenge"),
		CodeChallengeMethod: get("code_challenge_method"),
	}
}

// NewAuthorizeHandler valida el request y devuelve el payload de consent:
// client, scopes y parámetros que el front reenvía en el POST de decisión.
// Corre detrás de RequireSession.
func NewAuthorizeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ten, _ := tenant.FromContext(r.Context())
		a, err := c.Engine.ValidateAuthorize(r.Context(), ten, parseAuthorizeRequest(r.URL.Query()))
		if err != nil {
			httpx.WriteOAuthError(w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"client": map[string]any{
				"client_id": a.Client.ClientID,
				"name":      a.Client.Name,
			},
			"scopes":       a.ConsentScopes(),
			"redirect_uri": a.RedirectURI,
			"state":        a.State,
		})
	}
}

// NewAuthorizeDecisionHandler procesa el POST del consent. confirm=true
// emite el code; cualquier otra cosa redirige con access_denied.
func NewAuthorizeDecisionHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !httpx.ReadForm(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())
		a, err := c.Engine.ValidateAuthorize(r.Context(), ten, parseAuthorizeRequest(r.PostForm))
		if err != nil {
			httpx.WriteOAuthError(w, err)
			return
		}

		sess := middlewares.GetSession(r.Context())
		if sess == nil {
			httpx.WriteError(w, http.StatusUnauthorized, "login_required", "no active session", httpx.CodeUnauthorized)
			return
		}

		if r.PostForm.Get("confirm") != "true" {
			http.Redirect(w, r, a.Deny(), http.StatusFound)
			return
		}

		loc, err := c.Engine.Approve(r.Context(), ten, a, sess.Subject)
		if err != nil {
			httpx.WriteOAuthError(w, err)
			return
		}
		http.Redirect(w, r, loc, http.StatusFound)
	}
}
