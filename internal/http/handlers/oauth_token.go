package handlers

import (
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/tenant"
)

// NewTokenHandler multiplexa /oauth/token por grant_type.
func NewTokenHandler(c *app.Container) http.HandlerFunc {
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
		req := &oauth.TokenRequest{
			GrantType:    strings.TrimSpace(r.PostForm.Get("grant_type")),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Code:         strings.TrimSpace(r.PostForm.Get("code")),
			RedirectURI:  strings.TrimSpace(r.PostForm.Get("redirect_uri")),
			CodeVerifier: strings.TrimSpace(r.PostForm.Get("code_verifier")),
			Username:     strings.TrimSpace(r.PostForm.Get("username")),
			Password:     r.PostForm.Get("password"),
			RefreshToken: strings.TrimSpace(r.PostForm.Get("refresh_token")),
			Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
		}

		resp, err := c.Engine.Token(r.Context(), ten, req)
		if err != nil {
			oe := oauth.AsError(err)
			httpx.CountTokenError(oe.Code)
			noStore(w)
			httpx.WriteOAuthError(w, oe)
			return
		}

		httpx.CountTokenIssued(req.GrantType)
		noStore(w)
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
