package oauth

import (
	"context"
	"errors"

	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/store/core"
)

// Hints de RFC 7662 §2.1; un hint equivocado no es error, solo cambia el
// orden de búsqueda.
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
)

// Introspection es la respuesta de RFC 7662. Con active=false los campos
// de metadata se omiten. Username viaja siempre: null en tokens de
// client_credentials, que no tienen user detrás.
type Introspection struct {
	Active    bool    `json:"active"`
	Scope     string  `json:"scope,omitempty"`
	ClientID  string  `json:"client_id,omitempty"`
	TokenType string  `json:"token_type,omitempty"`
	Sub       string  `json:"sub,omitempty"`
	Username  *string `json:"username"`
	TenantID  string  `json:"tenant_id,omitempty"`
	Exp       int64   `json:"exp,omitempty"`
	Iat       int64   `json:"iat,omitempty"`
}

var inactive = &Introspection{Active: false}

// Introspect busca el valor como access token y después como refresh. Nunca
// falla hacia el caller por token desconocido: eso es active=false.
func (e *Engine) Introspect(ctx context.Context, value, hint string) (*Introspection, error) {
	if value == "" {
		return inactive, nil
	}

	lookups := []func(context.Context, string) (*core.Token, error){
		e.store.GetTokenByAccess, e.store.GetTokenByRefresh,
	}
	if hint == HintRefreshToken {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	var t *core.Token
	var asRefresh bool
	for i, lookup := range lookups {
		got, err := lookup(ctx, value)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		t = got
		asRefresh = (hint == HintRefreshToken) == (i == 0)
		break
	}
	if t == nil || t.Revoked {
		return inactive, nil
	}

	now := e.now()
	exp := t.AccessExpiresAt
	if asRefresh {
		if t.RefreshExpired(now) {
			return inactive, nil
		}
		exp = *t.RefreshExpiresAt
	} else if t.AccessExpired(now) {
		return inactive, nil
	}

	out := &Introspection{
		Active:    true,
		Scope:     t.Scope,
		ClientID:  t.ClientID,
		TokenType: t.TokenType,
		TenantID:  t.TenantID,
		Exp:       exp.Unix(),
		Iat:       t.IssuedAt.Unix(),
	}
	if t.UserID != nil {
		out.Sub = *t.UserID
		u, err := e.store.GetUserByID(ctx, *t.UserID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		if u != nil {
			out.Username = &u.Username
		}
	}
	return out, nil
}

// Revoke marca el par como revocado. Token desconocido no es error: RFC 7009
// pide 200 igual, para no filtrar qué valores existen.
func (e *Engine) Revoke(ctx context.Context, tenant *core.Tenant, clientID, clientSecret, value string) error {
	if tenant == nil {
		return ErrTenantNotFound
	}
	client, err := e.authenticateClient(ctx, tenant, &TokenRequest{ClientID: clientID, ClientSecret: clientSecret})
	if err != nil {
		return err
	}
	if value == "" {
		return nil
	}

	t, err := e.store.GetTokenByAccess(ctx, value)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		t, err = e.store.GetTokenByRefresh(ctx, value)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil
			}
			return err
		}
	}
	// solo el dueño puede revocar su token
	if t.TenantID != tenant.ID || t.ClientID != client.ClientID {
		return nil
	}
	if err := e.store.RevokeToken(ctx, t.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	e.log.Info("token revoked",
		logger.TenantID(tenant.ID), logger.ClientID(client.ClientID))
	return nil
}
