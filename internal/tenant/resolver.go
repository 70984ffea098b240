// Package tenant identifica el tenant activo de un request y lo propaga
// via context. Nunca estado global: el tenant resuelto vive únicamente en
// el context del request.
package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/varela-dev/multipass/internal/cache"
	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/store/core"
)

// Headers de identificación explícita.
const (
	HeaderSlug = "X-Tenant-Slug"
	HeaderID   = "X-Tenant-ID"
)

// PathPrefix es el namespace de la convención por path: /tenants/{slug}/...
const PathPrefix = "tenants"

// reservedSubdomains nunca se interpretan como slug de tenant.
var reservedSubdomains = map[string]struct{}{
	"www":   {},
	"api":   {},
	"admin": {},
}

// Resolver aplica la cadena de estrategias de identificación.
//
// Orden estricto, gana el primer match:
//  1. Header X-Tenant-Slug (lookup exacto por slug)
//  2. Header X-Tenant-ID (id malformado se ignora y sigue la cadena)
//  3. Subdominio (>=3 labels, label inicial fuera del set reservado)
//  4. Dominio custom (match exacto del host)
//  5. Path /tenants/{slug}/...
//
// Solo se devuelven tenants activos. Sin match => (nil, nil); las operaciones
// que requieren tenant deben fallar con tenant_not_identified aguas abajo.
type Resolver struct {
	store    core.Repository
	cache    cache.Client // opcional; amortigua lookups por slug/domain
	cacheTTL time.Duration
	log      *zap.Logger
}

func NewResolver(store core.Repository, c cache.Client) *Resolver {
	return &Resolver{
		store:    store,
		cache:    c,
		cacheTTL: 30 * time.Second,
		log:      logger.Named("tenant.resolver"),
	}
}

// Resolve identifica el tenant del request. Errores de infraestructura
// (store caído) se propagan; "no encontrado" es fall-through, no error.
func (r *Resolver) Resolve(ctx context.Context, hdr http.Header, host, path string) (*core.Tenant, error) {
	// 1. Header slug explícito
	if slug := strings.TrimSpace(hdr.Get(HeaderSlug)); slug != "" {
		t, err := r.bySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	// 2. Header id explícito; formato inválido no es error, cae a la siguiente
	if id := strings.TrimSpace(hdr.Get(HeaderID)); id != "" {
		if _, perr := uuid.Parse(id); perr == nil {
			t, err := r.byID(ctx, id)
			if err != nil {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
		}
	}

	hostname := stripPort(host)

	// 3. Subdominio: acme.example.com -> acme
	if parts := strings.Split(hostname, "."); len(parts) >= 3 {
		sub := parts[0]
		if _, reserved := reservedSubdomains[sub]; !reserved && sub != "" {
			t, err := r.bySlug(ctx, sub)
			if err != nil {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
		}
	}

	// 4. Dominio custom: el host completo matchea Tenant.Domain
	if hostname != "" {
		t, err := r.byDomain(ctx, hostname)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	// 5. Convención por path: /tenants/{slug}/...
	if parts := strings.Split(path, "/"); len(parts) >= 3 && parts[1] == PathPrefix {
		if slug := parts[2]; slug != "" {
			t, err := r.bySlug(ctx, slug)
			if err != nil {
				return nil, err
			}
			if t != nil {
				return t, nil
			}
		}
	}

	return nil, nil
}

func (r *Resolver) bySlug(ctx context.Context, slug string) (*core.Tenant, error) {
	if t := r.cached(ctx, "tenant:slug:"+slug); t != nil {
		return activeOnly(t), nil
	}
	t, err := r.store.GetTenantBySlug(ctx, slug)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.remember(ctx, "tenant:slug:"+slug, t)
	return activeOnly(t), nil
}

func (r *Resolver) byID(ctx context.Context, id string) (*core.Tenant, error) {
	t, err := r.store.GetTenantByID(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return activeOnly(t), nil
}

func (r *Resolver) byDomain(ctx context.Context, domain string) (*core.Tenant, error) {
	if t := r.cached(ctx, "tenant:domain:"+domain); t != nil {
		return activeOnly(t), nil
	}
	t, err := r.store.GetTenantByDomain(ctx, domain)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.remember(ctx, "tenant:domain:"+domain, t)
	return activeOnly(t), nil
}

// Invalidate descarta las entradas cacheadas de un tenant. Se llama al
// desactivarlo para que el cambio sea visible antes de expirar el TTL.
func (r *Resolver) Invalidate(ctx context.Context, t *core.Tenant) {
	if r.cache == nil || t == nil {
		return
	}
	_ = r.cache.Delete(ctx, "tenant:slug:"+t.Slug)
	if t.Domain != nil && *t.Domain != "" {
		_ = r.cache.Delete(ctx, "tenant:domain:"+*t.Domain)
	}
}

func (r *Resolver) cached(ctx context.Context, key string) *core.Tenant {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var t core.Tenant
	if json.Unmarshal([]byte(raw), &t) != nil {
		return nil
	}
	return &t
}

func (r *Resolver) remember(ctx context.Context, key string, t *core.Tenant) {
	if r.cache == nil || t == nil {
		return
	}
	if raw, err := json.Marshal(t); err == nil {
		if err := r.cache.Set(ctx, key, string(raw), r.cacheTTL); err != nil {
			r.log.Debug("cache set failed", logger.Err(err))
		}
	}
}

func activeOnly(t *core.Tenant) *core.Tenant {
	if t == nil || !t.IsActive {
		return nil
	}
	return t
}

func stripPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}
