package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/http/middlewares"
	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/security/token"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/tenant"
)

type clientRegisterRequest struct {
	Name                    string   `json:"name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	Scope                   string   `json:"scope"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"` // client_secret_basic | client_secret_post | none
}

type clientResponse struct {
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret,omitempty"` // solo en el alta
	Name          string   `json:"name"`
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types"`
	Scope         string   `json:"scope"`
	Public        bool     `json:"public"`
}

func toClientResponse(c *core.Client, secret string) clientResponse {
	return clientResponse{
		ClientID:      c.ClientID,
		ClientSecret:  secret,
		Name:          c.Name,
		RedirectURIs:  c.RedirectURIs,
		GrantTypes:    c.GrantTypes,
		ResponseTypes: c.ResponseTypes,
		Scope:         strings.Join(c.Scope, " "),
		Public:        c.Public(),
	}
}

var allowedGrants = map[string]bool{
	oauth.GrantAuthorizationCode: true,
	oauth.GrantPassword:          true,
	oauth.GrantClientCredentials: true,
	oauth.GrantRefreshToken:      true,
}

// NewClientRegisterHandler registra una aplicación OAuth del usuario de la
// sesión. auth method "none" produce un client público sin secret.
func NewClientRegisterHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ten, _ := tenant.FromContext(r.Context())
		sess := middlewares.GetSession(r.Context())

		var req clientRegisterRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error", "name es obligatorio", httpx.CodeValidation)
			return
		}
		for _, g := range req.GrantTypes {
			if !allowedGrants[g] {
				httpx.WriteError(w, http.StatusBadRequest, "validation_error",
					"grant type no soportado: "+g, httpx.CodeValidation)
				return
			}
		}
		if len(req.GrantTypes) == 0 {
			req.GrantTypes = []string{oauth.GrantAuthorizationCode, oauth.GrantRefreshToken}
		}
		if len(req.ResponseTypes) == 0 {
			req.ResponseTypes = []string{oauth.ResponseTypeCode}
		}
		if len(req.RedirectURIs) == 0 {
			req.RedirectURIs = []string{"http://localhost:8080/callback"}
		}
		if strings.TrimSpace(req.Scope) == "" {
			req.Scope = "read write"
		}
		authMethod := req.TokenEndpointAuthMethod
		if authMethod == "" {
			authMethod = "client_secret_basic"
		}

		clientID, err := token.GenerateOpaqueToken(token.ClientIDBytes)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		var secret *string
		plainSecret := ""
		if authMethod != "none" {
			plainSecret, err = token.GenerateOpaqueToken(token.ClientSecretBytes)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
				return
			}
			secret = &plainSecret
		}

		cl := &core.Client{
			TenantID:                ten.ID,
			ClientID:                clientID,
			ClientSecret:            secret,
			Name:                    req.Name,
			RedirectURIs:            req.RedirectURIs,
			GrantTypes:              req.GrantTypes,
			ResponseTypes:           req.ResponseTypes,
			Scope:                   strings.Fields(req.Scope),
			TokenEndpointAuthMethod: authMethod,
			UserID:                  sess.Subject,
		}
		if err := c.Store.CreateClient(r.Context(), cl); err != nil {
			if errors.Is(err, core.ErrConflict) {
				httpx.WriteError(w, http.StatusConflict, "client_exists", "client_id duplicado", httpx.CodeInternal)
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}

		logger.From(r.Context()).Info("client registered",
			logger.ClientID(cl.ClientID), logger.UserID(sess.Subject))
		// el secret en claro viaja una sola vez
		httpx.WriteJSON(w, http.StatusCreated, toClientResponse(cl, plainSecret))
	}
}

// NewClientListHandler lista los clients del usuario de la sesión.
func NewClientListHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ten, _ := tenant.FromContext(r.Context())
		sess := middlewares.GetSession(r.Context())

		clients, err := c.Store.ListClientsByUser(r.Context(), ten.ID, sess.Subject)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		out := make([]clientResponse, 0, len(clients))
		for i := range clients {
			out = append(out, toClientResponse(&clients[i], ""))
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"clients": out})
	}
}
