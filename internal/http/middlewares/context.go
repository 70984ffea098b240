package middlewares

import (
	"context"

	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/session"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyPrincipal
	ctxKeySession
)

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, rid)
}

// GetRequestID devuelve el request id del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func withPrincipal(ctx context.Context, p *oauth.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// GetPrincipal devuelve el principal OAuth del bearer validado.
func GetPrincipal(ctx context.Context) *oauth.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(*oauth.Principal)
	return p
}

func withSession(ctx context.Context, c *session.Claims) context.Context {
	return context.WithValue(ctx, ctxKeySession, c)
}

// GetSession devuelve los claims de la cookie de sesión validada.
func GetSession(ctx context.Context) *session.Claims {
	c, _ := ctx.Value(ctxKeySession).(*session.Claims)
	return c
}
