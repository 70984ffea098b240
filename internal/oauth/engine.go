// Package oauth implementa el grant engine: emisión de authorization codes,
// canje de los cuatro grant types, introspección y revocación. La política
// OAuth vive acá; la persistencia es del core.Repository inyectado.
package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/security/password"
	"github.com/varela-dev/multipass/internal/security/token"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/validation"
)

// Grant types soportados.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantPassword          = "password"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

const TokenTypeBearer = "Bearer"

// TTLs por defecto.
const (
	DefaultCodeTTL    = 10 * time.Minute
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

type Config struct {
	CodeTTL    time.Duration
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c *Config) defaults() {
	if c.CodeTTL <= 0 {
		c.CodeTTL = DefaultCodeTTL
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
}

type Engine struct {
	store core.Repository
	cfg   Config
	log   *zap.Logger

	// now es inyectable para tests de expiración.
	now func() time.Time
}

func NewEngine(store core.Repository, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		store: store,
		cfg:   cfg,
		log:   logger.Named("oauth.engine"),
		now:   time.Now,
	}
}

// TokenRequest es el form del token endpoint ya parseado. Las credenciales
// del client pueden venir por Basic auth o por el body; el handler las
// normaliza acá.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string
	// password
	Username string
	Password string
	// refresh_token
	RefreshToken string
	// scope pedido (password / client_credentials / refresh narrowing)
	Scope string
}

// TokenResponse es el JSON del token endpoint (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token multiplexa por grant_type. El tenant ya viene resuelto por el
// middleware; todo lookup posterior se cruza contra él.
func (e *Engine) Token(ctx context.Context, tenant *core.Tenant, req *TokenRequest) (*TokenResponse, error) {
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	switch req.GrantType {
	case GrantAuthorizationCode, GrantPassword, GrantClientCredentials, GrantRefreshToken:
	default:
		return nil, ErrUnsupportedGrantType.WithDescription("grant type %q is not supported", req.GrantType)
	}

	client, err := e.authenticateClient(ctx, tenant, req)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrantType(req.GrantType) {
		return nil, ErrUnauthorizedClient.WithDescription("client is not allowed to use grant %q", req.GrantType)
	}

	switch req.GrantType {
	case GrantAuthorizationCode:
		return e.exchangeCode(ctx, tenant, client, req)
	case GrantPassword:
		return e.passwordGrant(ctx, tenant, client, req)
	case GrantClientCredentials:
		return e.clientCredentialsGrant(ctx, tenant, client, req)
	default:
		return e.refreshGrant(ctx, tenant, client, req)
	}
}

// authenticateClient resuelve el client y valida sus credenciales. El
// client_id es único global; la fila dice a qué tenant pertenece y eso se
// cruza contra el tenant resuelto del request.
func (e *Engine) authenticateClient(ctx context.Context, tenant *core.Tenant, req *TokenRequest) (*core.Client, error) {
	if req.ClientID == "" {
		return nil, ErrInvalidClient.WithDescription("client_id is required")
	}
	client, err := e.store.GetClientByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidClient.WithDescription("unknown client")
		}
		return nil, err
	}
	if client.TenantID != tenant.ID {
		// no filtramos si el client existe en otro tenant
		return nil, ErrInvalidClient.WithDescription("unknown client")
	}

	if client.Public() {
		// cliente público: sin secret; PKCE se exige en el canje de code
		if req.ClientSecret != "" {
			return nil, ErrInvalidClient.WithDescription("public client must not send a secret")
		}
		return client, nil
	}
	if subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(*client.ClientSecret)) != 1 {
		return nil, ErrInvalidClient.WithDescription("client authentication failed")
	}
	return client, nil
}

// ---------- authorization_code ----------

func (e *Engine) exchangeCode(ctx context.Context, tenant *core.Tenant, client *core.Client, req *TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, ErrInvalidRequest.WithDescription("code is required")
	}

	// Reclamo atómico: la fila se borra al leerla, un solo canje gana.
	ac, err := e.store.ConsumeAuthorizationCode(ctx, client.ClientID, req.Code)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidGrant.WithDescription("authorization code is invalid or already used")
		}
		return nil, err
	}
	if ac.TenantID != tenant.ID {
		return nil, ErrInvalidGrant.WithDescription("authorization code is invalid or already used")
	}
	if ac.Expired(e.now()) {
		return nil, ErrInvalidGrant.WithDescription("authorization code expired")
	}
	if ac.RedirectURI != "" && ac.RedirectURI != req.RedirectURI {
		return nil, ErrInvalidGrant.WithDescription("redirect_uri does not match the authorization request")
	}

	// PKCE: obligatorio si el code lo trae o si el client es público.
	if ac.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, ErrInvalidGrant.WithDescription("code_verifier is required")
		}
		if !verifyPKCE(ac.CodeChallenge, ac.CodeChallengeMethod, req.CodeVerifier) {
			return nil, ErrInvalidGrant.WithDescription("code_verifier does not match the challenge")
		}
	} else if client.Public() {
		return nil, ErrInvalidGrant.WithDescription("public client requires PKCE")
	}

	tok, err := e.issuePair(ctx, tenant, client, &ac.UserID, ac.Scope, true)
	if err != nil {
		return nil, err
	}
	e.log.Info("code exchanged",
		logger.TenantID(tenant.ID), logger.ClientID(client.ClientID),
		logger.UserID(ac.UserID), logger.GrantType(GrantAuthorizationCode))
	return respond(tok, e.cfg.AccessTTL), nil
}

// ---------- password ----------

func (e *Engine) passwordGrant(ctx context.Context, tenant *core.Tenant, client *core.Client, req *TokenRequest) (*TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidRequest.WithDescription("username and password are required")
	}

	u, err := e.store.FindUserInTenant(ctx, tenant.ID, req.Username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// misma respuesta que password inválido, sin filtrar existencia
			return nil, ErrInvalidGrant.WithDescription("invalid credentials")
		}
		return nil, err
	}
	if !u.IsActive || !password.Verify(req.Password, u.PasswordHash) {
		return nil, ErrInvalidGrant.WithDescription("invalid credentials")
	}

	scope := e.grantedScope(client, req.Scope)
	tok, err := e.issuePair(ctx, tenant, client, &u.ID, scope, true)
	if err != nil {
		return nil, err
	}
	e.log.Info("password grant",
		logger.TenantID(tenant.ID), logger.ClientID(client.ClientID),
		logger.UserID(u.ID), logger.GrantType(GrantPassword))
	return respond(tok, e.cfg.AccessTTL), nil
}

// ---------- client_credentials ----------

func (e *Engine) clientCredentialsGrant(ctx context.Context, tenant *core.Tenant, client *core.Client, req *TokenRequest) (*TokenResponse, error) {
	if client.Public() {
		return nil, ErrUnauthorizedClient.WithDescription("client_credentials requires a confidential client")
	}
	scope := e.grantedScope(client, req.Scope)
	// machine token: sin user y sin refresh
	tok, err := e.issuePair(ctx, tenant, client, nil, scope, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("client_credentials grant",
		logger.TenantID(tenant.ID), logger.ClientID(client.ClientID),
		logger.GrantType(GrantClientCredentials))
	return respond(tok, e.cfg.AccessTTL), nil
}

// ---------- refresh_token ----------

func (e *Engine) refreshGrant(ctx context.Context, tenant *core.Tenant, client *core.Client, req *TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, ErrInvalidRequest.WithDescription("refresh_token is required")
	}
	old, err := e.store.GetTokenByRefresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidGrant.WithDescription("refresh token is invalid")
		}
		return nil, err
	}
	if old.TenantID != tenant.ID || old.ClientID != client.ClientID {
		return nil, ErrInvalidGrant.WithDescription("refresh token is invalid")
	}
	if old.Revoked {
		return nil, ErrInvalidGrant.WithDescription("refresh token was revoked")
	}
	if old.RefreshExpired(e.now()) {
		return nil, ErrInvalidGrant.WithDescription("refresh token expired")
	}

	// narrowing: el scope pedido debe ser subset del scope original
	scope := old.Scope
	if req.Scope != "" {
		if !validation.ScopeSubset(req.Scope, old.Scope) {
			return nil, ErrInvalidScope.WithDescription("requested scope exceeds the original grant")
		}
		scope = validation.JoinScope(validation.ParseScope(req.Scope))
	}

	neu, err := e.mintPair(tenant, client, old.UserID, scope, true)
	if err != nil {
		return nil, err
	}
	// rotación: el par viejo muere con el nuevo en la misma transacción
	if err := e.store.RotateToken(ctx, old.ID, neu); err != nil {
		if errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidGrant.WithDescription("refresh token is invalid")
		}
		return nil, err
	}
	e.log.Info("refresh rotated",
		logger.TenantID(tenant.ID), logger.ClientID(client.ClientID),
		logger.GrantType(GrantRefreshToken))
	return respond(neu, e.cfg.AccessTTL), nil
}

// ---------- emisión ----------

// grantedScope filtra el scope pedido contra el registrado del client.
// Scopes no permitidos se descartan en silencio; pedido vacío hereda el
// default del client.
func (e *Engine) grantedScope(client *core.Client, requested string) string {
	if requested == "" {
		return validation.JoinScope(client.Scope)
	}
	return validation.FilterScope(requested, client.Scope)
}

func (e *Engine) mintPair(tenant *core.Tenant, client *core.Client, userID *string, scope string, withRefresh bool) (*core.Token, error) {
	access, err := token.GenerateOpaqueToken(token.AccessTokenBytes)
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	t := &core.Token{
		TenantID:        tenant.ID,
		UserID:          userID,
		ClientID:        client.ClientID,
		TokenType:       TokenTypeBearer,
		AccessToken:     access,
		Scope:           scope,
		IssuedAt:        now,
		AccessExpiresAt: now.Add(e.cfg.AccessTTL),
	}
	if withRefresh {
		refresh, err := token.GenerateOpaqueToken(token.RefreshTokenBytes)
		if err != nil {
			return nil, err
		}
		exp := now.Add(e.cfg.RefreshTTL)
		t.RefreshToken = &refresh
		t.RefreshExpiresAt = &exp
	}
	return t, nil
}

func (e *Engine) issuePair(ctx context.Context, tenant *core.Tenant, client *core.Client, userID *string, scope string, withRefresh bool) (*core.Token, error) {
	t, err := e.mintPair(tenant, client, userID, scope, withRefresh)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func respond(t *core.Token, accessTTL time.Duration) *TokenResponse {
	resp := &TokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int(accessTTL.Seconds()),
		Scope:       t.Scope,
	}
	if t.RefreshToken != nil {
		resp.RefreshToken = *t.RefreshToken
	}
	return resp
}
