package tenant

import (
	"context"

	"github.com/varela-dev/multipass/internal/store/core"
)

type ctxKey struct{}

// WithTenant inyecta el tenant resuelto en el contexto del request.
func WithTenant(ctx context.Context, t *core.Tenant) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext retorna el tenant del contexto; ok es false si ninguna
// estrategia identificó tenant para este request.
func FromContext(ctx context.Context) (*core.Tenant, bool) {
	t, ok := ctx.Value(ctxKey{}).(*core.Tenant)
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}
