package core

import "time"

// Roles de usuario dentro de un tenant.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

// Tenant es una organización aislada. Todo lo demás (users, clients, codes,
// tokens) cuelga de un tenant_id.
type Tenant struct {
	ID        string
	Name      string
	Slug      string  // único global, inmutable, [a-z0-9-]
	Domain    *string // dominio custom opcional, único global
	IsActive  bool
	Plan      string
	MaxUsers  int
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User pertenece a exactamente un tenant. username y email son únicos
// por tenant, no globales.
type User struct {
	ID           string
	TenantID     string
	Username     string
	Email        string
	PasswordHash string
	Role         string // user | admin | owner
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Client es una aplicación OAuth registrada dentro de un tenant.
// ClientSecret nil => cliente público (requiere PKCE en authorization_code).
type Client struct {
	ID                      string
	TenantID                string
	ClientID                string // único global, opaco
	ClientSecret            *string
	Name                    string
	RedirectURIs            []string
	GrantTypes              []string
	ResponseTypes           []string
	Scope                   []string // scopes permitidos para el client
	TokenEndpointAuthMethod string
	UserID                  string // usuario que registró el client
	CreatedAt               time.Time
}

// Public reporta si el client no tiene secret.
func (c *Client) Public() bool {
	return c.ClientSecret == nil || *c.ClientSecret == ""
}

// CheckRedirectURI valida por igualdad exacta contra la lista registrada.
// Sin wildcards ni prefijos.
func (c *Client) CheckRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AllowsGrantType reporta si el grant está habilitado para el client.
func (c *Client) AllowsGrantType(gt string) bool {
	for _, g := range c.GrantTypes {
		if g == gt {
			return true
		}
	}
	return false
}

// AllowsResponseType reporta si el response_type está habilitado.
func (c *Client) AllowsResponseType(rt string) bool {
	for _, r := range c.ResponseTypes {
		if r == rt {
			return true
		}
	}
	return false
}

// AuthorizationCode es un code de un solo uso emitido en /authorize.
// Se consume (borra) en el canje o expira, lo que ocurra primero.
type AuthorizationCode struct {
	ID                  string
	TenantID            string
	UserID              string
	ClientID            string // client_id (texto), no el PK del client
	Code                string
	RedirectURI         string
	Scope               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string // "S256" | "plain" | ""
	IssuedAt            time.Time
	ExpiresAt           time.Time
}

// Expired compara contra el instante dado; el engine pasa time.Now().
func (ac *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(ac.ExpiresAt)
}

// Token es el par access+refresh emitido por el grant engine.
// UserID nil para client_credentials.
type Token struct {
	ID               string
	TenantID         string
	UserID           *string
	ClientID         string // client_id (texto)
	TokenType        string // siempre "Bearer"
	AccessToken      string
	RefreshToken     *string
	Scope            string
	Revoked          bool
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt *time.Time
}

// AccessExpired reporta si el access token venció al instante dado.
func (t *Token) AccessExpired(now time.Time) bool {
	return now.After(t.AccessExpiresAt)
}

// RefreshExpired reporta si el refresh venció (o no existe).
func (t *Token) RefreshExpired(now time.Time) bool {
	if t.RefreshToken == nil || t.RefreshExpiresAt == nil {
		return true
	}
	return now.After(*t.RefreshExpiresAt)
}

// TenantStats resume el uso de un tenant para el panel de administración.
type TenantStats struct {
	TotalUsers   int    `json:"total_users"`
	ActiveUsers  int    `json:"active_users"`
	TotalClients int    `json:"total_clients"`
	ActiveTokens int    `json:"active_tokens"`
	Plan         string `json:"plan"`
	MaxUsers     int    `json:"max_users"`
}
