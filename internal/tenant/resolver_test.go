package tenant

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varela-dev/multipass/internal/cache"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/store/memory"
)

func newResolver(t *testing.T) (*Resolver, *memory.Store) {
	t.Helper()
	st := memory.New()
	c, err := cache.New(cache.Config{Driver: "memory"})
	require.NoError(t, err)
	return NewResolver(st, c), st
}

func seed(t *testing.T, st *memory.Store, slug string, domain *string, active bool) *core.Tenant {
	t.Helper()
	ten := &core.Tenant{Name: slug, Slug: slug, Domain: domain, IsActive: active, Plan: "free"}
	require.NoError(t, st.CreateTenant(context.Background(), ten))
	return ten
}

func TestResolveBySlugHeader(t *testing.T) {
	r, st := newResolver(t)
	ten := seed(t, st, "acme", nil, true)

	hdr := http.Header{}
	hdr.Set(HeaderSlug, "acme")
	got, err := r.Resolve(context.Background(), hdr, "localhost:8080", "/oauth/token")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ten.ID, got.ID)
}

func TestResolveByIDHeader(t *testing.T) {
	r, st := newResolver(t)
	ten := seed(t, st, "acme", nil, true)

	hdr := http.Header{}
	hdr.Set(HeaderID, ten.ID)
	got, err := r.Resolve(context.Background(), hdr, "localhost", "/")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Slug)
}

func TestResolveMalformedIDFallsThrough(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "acme", nil, true)

	// id inválido no aborta: cae al subdominio
	hdr := http.Header{}
	hdr.Set(HeaderID, "not-a-uuid")
	got, err := r.Resolve(context.Background(), hdr, "acme.example.com", "/")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Slug)
}

func TestResolveSlugHeaderWinsOverSubdomain(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "acme", nil, true)
	globex := seed(t, st, "globex", nil, true)

	hdr := http.Header{}
	hdr.Set(HeaderSlug, "globex")
	got, err := r.Resolve(context.Background(), hdr, "acme.example.com", "/")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, globex.ID, got.ID)
}

func TestResolveBySubdomain(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "acme", nil, true)

	got, err := r.Resolve(context.Background(), http.Header{}, "acme.example.com:8443", "/")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Slug)
}

func TestResolveReservedSubdomainSkipped(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "www", nil, true)

	got, err := r.Resolve(context.Background(), http.Header{}, "www.example.com", "/")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveTwoLabelHostNotSubdomain(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "example", nil, true)

	got, err := r.Resolve(context.Background(), http.Header{}, "example.com", "/")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveByCustomDomain(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "acme", strPtr("login.acme.io"), true)

	got, err := r.Resolve(context.Background(), http.Header{}, "login.acme.io", "/")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Slug)
}

func TestResolveByPath(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "acme", nil, true)

	got, err := r.Resolve(context.Background(), http.Header{}, "localhost", "/tenants/acme/info")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Slug)
}

func TestResolveInactiveTenantIgnored(t *testing.T) {
	r, st := newResolver(t)
	seed(t, st, "acme", nil, false)

	hdr := http.Header{}
	hdr.Set(HeaderSlug, "acme")
	got, err := r.Resolve(context.Background(), hdr, "acme.example.com", "/tenants/acme/info")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveUnknownEverything(t *testing.T) {
	r, _ := newResolver(t)
	hdr := http.Header{}
	hdr.Set(HeaderSlug, "nope")
	hdr.Set(HeaderID, uuid.NewString())
	got, err := r.Resolve(context.Background(), hdr, "nope.example.com", "/tenants/nope/info")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTenantContext(t *testing.T) {
	ten := &core.Tenant{ID: uuid.NewString(), Slug: "acme"}
	ctx := WithTenant(context.Background(), ten)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, ten, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

func strPtr(s string) *string { return &s }
