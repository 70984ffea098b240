package oauth

import (
	"context"
	"errors"
	"net/url"

	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/security/token"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/validation"
)

const ResponseTypeCode = "code"

// AuthorizeRequest son los query params de /oauth/authorize ya parseados.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorization es un request validado, listo para mostrar consent o
// emitir el code.
type Authorization struct {
	Client      *core.Client
	RedirectURI string
	Scope       string // ya filtrado contra el client
	State       string
	Nonce       string

	challenge       string
	challengeMethod string
}

// ValidateAuthorize chequea el request de autorización. Devuelve *Error en
// fallas; el handler decide si renderiza o redirige según RedirectTrusted.
func (e *Engine) ValidateAuthorize(ctx context.Context, tenant *core.Tenant, req *AuthorizeRequest) (*Authorization, error) {
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	if req.ClientID == "" {
		return nil, ErrInvalidRequest.WithDescription("client_id is required")
	}
	client, err := e.store.GetClientByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidClient.WithDescription("unknown client")
		}
		return nil, err
	}
	if client.TenantID != tenant.ID {
		return nil, ErrInvalidClient.WithDescription("unknown client")
	}

	// redirect_uri: exacta contra lo registrado; si falta y hay una sola
	// registrada, se usa esa.
	redirectURI := req.RedirectURI
	switch {
	case redirectURI == "" && len(client.RedirectURIs) == 1:
		redirectURI = client.RedirectURIs[0]
	case redirectURI == "" || !client.CheckRedirectURI(redirectURI):
		return nil, ErrInvalidRedirectURI
	}

	// de acá en adelante los errores pueden volver por redirect
	if req.ResponseType != ResponseTypeCode {
		return nil, ErrUnsupportedRespType.WithDescription("response_type %q is not supported", req.ResponseType)
	}
	if !client.AllowsResponseType(ResponseTypeCode) || !client.AllowsGrantType(GrantAuthorizationCode) {
		return nil, ErrUnauthorizedClient.WithDescription("client is not allowed to use the authorization code flow")
	}

	switch req.CodeChallengeMethod {
	case "", PKCEMethodPlain, PKCEMethodS256:
	default:
		return nil, ErrInvalidRequest.WithDescription("code_challenge_method %q is not supported", req.CodeChallengeMethod)
	}
	if req.CodeChallengeMethod != "" && req.CodeChallenge == "" {
		return nil, ErrInvalidRequest.WithDescription("code_challenge is required when a method is given")
	}
	if client.Public() && req.CodeChallenge == "" {
		return nil, ErrInvalidRequest.WithDescription("public client requires PKCE")
	}

	return &Authorization{
		Client:          client,
		RedirectURI:     redirectURI,
		Scope:           e.grantedScope(client, req.Scope),
		State:           req.State,
		Nonce:           req.Nonce,
		challenge:       req.CodeChallenge,
		challengeMethod: req.CodeChallengeMethod,
	}, nil
}

// Approve emite el authorization code para el user que dio consent y arma la
// URL de retorno con code y state.
func (e *Engine) Approve(ctx context.Context, tenant *core.Tenant, a *Authorization, userID string) (string, error) {
	code, err := token.GenerateOpaqueToken(token.CodeBytes)
	if err != nil {
		return "", err
	}
	now := e.now().UTC()
	ac := &core.AuthorizationCode{
		TenantID:            tenant.ID,
		UserID:              userID,
		ClientID:            a.Client.ClientID,
		Code:                code,
		RedirectURI:         a.RedirectURI,
		Scope:               a.Scope,
		Nonce:               a.Nonce,
		CodeChallenge:       a.challenge,
		CodeChallengeMethod: a.challengeMethod,
		IssuedAt:            now,
		ExpiresAt:           now.Add(e.cfg.CodeTTL),
	}
	if err := e.store.CreateAuthorizationCode(ctx, ac); err != nil {
		return "", err
	}
	e.log.Info("code issued",
		logger.TenantID(tenant.ID), logger.ClientID(a.Client.ClientID), logger.UserID(userID))
	return addQuery(a.RedirectURI, map[string]string{"code": code, "state": a.State}), nil
}

// Deny arma la URL de retorno con access_denied (user rechazó el consent).
func (a *Authorization) Deny() string {
	return addQuery(a.RedirectURI, map[string]string{
		"error": ErrAccessDenied.Code,
		"state": a.State,
	})
}

// RedirectError arma la URL de retorno con el error OAuth. Solo se usa con
// una redirect_uri ya validada.
func (a *Authorization) RedirectError(oe *Error) string {
	return addQuery(a.RedirectURI, map[string]string{
		"error":             oe.Code,
		"error_description": oe.Description,
		"state":             a.State,
	})
}

// ConsentScopes lista los scopes filtrados para mostrarlos en la pantalla
// de consent.
func (a *Authorization) ConsentScopes() []string {
	return validation.ParseScope(a.Scope)
}

func addQuery(rawURL string, params map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
