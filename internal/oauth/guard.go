package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/validation"
)

// Principal es la identidad detrás de un access token válido. UserID nil
// significa token de máquina (client_credentials).
type Principal struct {
	TokenID  string
	TenantID string
	ClientID string
	UserID   *string
	Scope    string
}

// HasScope reporta si el token lleva el scope dado.
func (p *Principal) HasScope(s string) bool {
	return validation.HasScope(p.Scope, s)
}

// Guard valida bearer tokens para recursos protegidos.
type Guard struct {
	store core.Repository
	now   func() time.Time
}

func NewGuard(store core.Repository) *Guard {
	return &Guard{store: store, now: time.Now}
}

// Validate resuelve el bearer contra el store y chequea vigencia y scopes.
// tenantID vacío omite el cruce de tenant (endpoints sin resolver).
func (g *Guard) Validate(ctx context.Context, tenantID, bearer string, required ...string) (*Principal, error) {
	if bearer == "" {
		return nil, ErrInvalidToken.WithDescription("missing bearer token")
	}
	t, err := g.store.GetTokenByAccess(ctx, bearer)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidToken.WithDescription("token is unknown")
		}
		return nil, err
	}
	if t.Revoked {
		return nil, ErrInvalidToken.WithDescription("token was revoked")
	}
	if t.AccessExpired(g.now()) {
		return nil, ErrInvalidToken.WithDescription("token expired")
	}
	if tenantID != "" && t.TenantID != tenantID {
		return nil, ErrInvalidToken.WithDescription("token is unknown")
	}
	for _, s := range required {
		if !validation.HasScope(t.Scope, s) {
			return nil, ErrInsufficientScope.WithDescription("scope %q is required", s)
		}
	}
	return &Principal{
		TokenID:  t.ID,
		TenantID: t.TenantID,
		ClientID: t.ClientID,
		UserID:   t.UserID,
		Scope:    t.Scope,
	}, nil
}
