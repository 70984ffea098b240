package core

import (
	"context"
	"time"
)

// Repository es el contrato del credential store. Las implementaciones (pg,
// memory) son dueñas de la persistencia; la política vive en el grant engine.
//
// Invariante transversal: toda lectura usada por el engine o el guard que
// parte de un principal con tenant debe filtrar por tenant_id. Las búsquedas
// por valor de token/client_id son globales porque el valor es único global y
// el tenant sale de la fila.
type Repository interface {
	Ping(ctx context.Context) error
	Close()

	// ── Tenants ──
	// CreateTenant falla con ErrConflict si slug o domain ya existen.
	CreateTenant(ctx context.Context, t *Tenant) error
	// CreateTenantWithOwner es atómico: tenant + primer user (role=owner)
	// en una transacción; si algo falla no persiste nada.
	CreateTenantWithOwner(ctx context.Context, t *Tenant, owner *User) error
	GetTenantByID(ctx context.Context, id string) (*Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetTenantByDomain(ctx context.Context, domain string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
	UpdateTenantSettings(ctx context.Context, tenantID string, settings map[string]any) error
	SetTenantActive(ctx context.Context, tenantID string, active bool) error
	// DeleteTenant borra el tenant y cascadea a users/clients/codes/tokens.
	DeleteTenant(ctx context.Context, tenantID string) error
	TenantStats(ctx context.Context, tenantID string, now time.Time) (*TenantStats, error)

	// ── Users ──
	// CreateUser falla con ErrConflict si (tenant, username) o (tenant, email)
	// ya existen.
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	FindUserInTenant(ctx context.Context, tenantID, username string) (*User, error)
	ListUsersInTenant(ctx context.Context, tenantID string) ([]User, error)
	CountActiveUsers(ctx context.Context, tenantID string) (int, error)
	UpdateUserRole(ctx context.Context, tenantID, userID, role string) error
	SetUserActive(ctx context.Context, tenantID, userID string, active bool) error

	// ── Clients ──
	CreateClient(ctx context.Context, c *Client) error
	// GetClientByClientID busca por client_id (único global).
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
	ListClientsByUser(ctx context.Context, tenantID, userID string) ([]Client, error)

	// ── Authorization codes ──
	CreateAuthorizationCode(ctx context.Context, ac *AuthorizationCode) error
	// ConsumeAuthorizationCode reclama el code de forma atómica
	// (delete-on-read): a lo sumo un caller concurrente lo obtiene, el resto
	// recibe ErrNotFound. No valida expiración; eso es política del engine.
	ConsumeAuthorizationCode(ctx context.Context, clientID, code string) (*AuthorizationCode, error)

	// ── Tokens ──
	CreateToken(ctx context.Context, t *Token) error
	GetTokenByAccess(ctx context.Context, accessToken string) (*Token, error)
	GetTokenByRefresh(ctx context.Context, refreshToken string) (*Token, error)
	// RevokeToken es permanente y monótono; nunca se des-revoca.
	RevokeToken(ctx context.Context, id string) error
	// RotateToken revoca el par viejo y persiste el nuevo atómicamente.
	RotateToken(ctx context.Context, oldID string, newTok *Token) error
}
