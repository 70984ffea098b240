package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varela-dev/multipass/internal/store/core"
)

func strPtr(s string) *string { return &s }

func seedTenant(t *testing.T, s *Store, slug string) *core.Tenant {
	t.Helper()
	ten := &core.Tenant{Name: slug, Slug: slug, IsActive: true, Plan: "free", MaxUsers: 10}
	require.NoError(t, s.CreateTenant(context.Background(), ten))
	return ten
}

func TestTenantSlugConflict(t *testing.T) {
	s := New()
	seedTenant(t, s, "acme")
	err := s.CreateTenant(context.Background(), &core.Tenant{Name: "Other", Slug: "acme", IsActive: true})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestTenantDomainConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateTenant(ctx, &core.Tenant{Name: "A", Slug: "a", Domain: strPtr("a.example.com"), IsActive: true}))
	err := s.CreateTenant(ctx, &core.Tenant{Name: "B", Slug: "b", Domain: strPtr("a.example.com"), IsActive: true})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestCreateTenantWithOwner(t *testing.T) {
	s := New()
	ctx := context.Background()
	ten := &core.Tenant{Name: "Acme", Slug: "acme", IsActive: true, Plan: "free", MaxUsers: 10}
	owner := &core.User{Username: "admin", Email: "admin@acme.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, s.CreateTenantWithOwner(ctx, ten, owner))

	assert.Equal(t, ten.ID, owner.TenantID)
	assert.Equal(t, core.RoleOwner, owner.Role)

	got, err := s.FindUserInTenant(ctx, ten.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ID)
}

func TestUsernameUniquePerTenantNotGlobally(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTenant(t, s, "acme")
	t2 := seedTenant(t, s, "globex")

	u1 := &core.User{TenantID: t1.ID, Username: "admin", Email: "admin@acme.com", Role: core.RoleUser, IsActive: true}
	require.NoError(t, s.CreateUser(ctx, u1))

	// mismo username en otro tenant: permitido
	u2 := &core.User{TenantID: t2.ID, Username: "admin", Email: "admin@globex.com", Role: core.RoleUser, IsActive: true}
	require.NoError(t, s.CreateUser(ctx, u2))

	// duplicado dentro del mismo tenant: conflicto
	dup := &core.User{TenantID: t1.ID, Username: "admin", Email: "other@acme.com"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), core.ErrConflict)

	// el lookup bajo T1 nunca devuelve al user de T2
	got, err := s.FindUserInTenant(ctx, t1.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, got.ID)
	assert.Equal(t, t1.ID, got.TenantID)
}

func TestEmailUniquePerTenant(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTenant(t, s, "acme")
	require.NoError(t, s.CreateUser(ctx, &core.User{TenantID: t1.ID, Username: "a", Email: "x@acme.com"}))
	err := s.CreateUser(ctx, &core.User{TenantID: t1.ID, Username: "b", Email: "X@acme.com"})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestConsumeAuthorizationCode_SingleUse(t *testing.T) {
	s := New()
	ctx := context.Background()
	ten := seedTenant(t, s, "acme")
	ac := &core.AuthorizationCode{
		TenantID:  ten.ID,
		UserID:    "u1",
		ClientID:  "client-1",
		Code:      "code-abc",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, s.CreateAuthorizationCode(ctx, ac))

	got, err := s.ConsumeAuthorizationCode(ctx, "client-1", "code-abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	_, err = s.ConsumeAuthorizationCode(ctx, "client-1", "code-abc")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestConsumeAuthorizationCode_WrongClient(t *testing.T) {
	s := New()
	ctx := context.Background()
	ten := seedTenant(t, s, "acme")
	require.NoError(t, s.CreateAuthorizationCode(ctx, &core.AuthorizationCode{
		TenantID: ten.ID, UserID: "u1", ClientID: "client-1", Code: "code-abc",
		IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute),
	}))
	_, err := s.ConsumeAuthorizationCode(ctx, "client-2", "code-abc")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// el code sigue vivo para el client correcto
	_, err = s.ConsumeAuthorizationCode(ctx, "client-1", "code-abc")
	assert.NoError(t, err)
}

func TestConsumeAuthorizationCode_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	ten := seedTenant(t, s, "acme")
	require.NoError(t, s.CreateAuthorizationCode(ctx, &core.AuthorizationCode{
		TenantID: ten.ID, UserID: "u1", ClientID: "client-1", Code: "code-race",
		IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute),
	}))

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeAuthorizationCode(ctx, "client-1", "code-race"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent exchange may win")
}

func TestRotateToken(t *testing.T) {
	s := New()
	ctx := context.Background()
	ten := seedTenant(t, s, "acme")
	old := &core.Token{
		TenantID: ten.ID, ClientID: "c1", TokenType: "Bearer",
		AccessToken: "at-old", RefreshToken: strPtr("rt-old"),
		IssuedAt: time.Now(), AccessExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateToken(ctx, old))

	neu := &core.Token{
		TenantID: ten.ID, ClientID: "c1", TokenType: "Bearer",
		AccessToken: "at-new", RefreshToken: strPtr("rt-new"),
		IssuedAt: time.Now(), AccessExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.RotateToken(ctx, old.ID, neu))

	gotOld, err := s.GetTokenByAccess(ctx, "at-old")
	require.NoError(t, err)
	assert.True(t, gotOld.Revoked)

	gotNew, err := s.GetTokenByAccess(ctx, "at-new")
	require.NoError(t, err)
	assert.False(t, gotNew.Revoked)

	// segunda rotación del mismo par: conflicto (reuse detection)
	err = s.RotateToken(ctx, old.ID, &core.Token{TenantID: ten.ID, ClientID: "c1", AccessToken: "at-x"})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestDeleteTenantCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	ten := seedTenant(t, s, "acme")
	u := &core.User{TenantID: ten.ID, Username: "a", Email: "a@acme.com"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.CreateClient(ctx, &core.Client{TenantID: ten.ID, ClientID: "c1", UserID: u.ID}))
	require.NoError(t, s.CreateToken(ctx, &core.Token{TenantID: ten.ID, ClientID: "c1", AccessToken: "at"}))
	require.NoError(t, s.CreateAuthorizationCode(ctx, &core.AuthorizationCode{TenantID: ten.ID, ClientID: "c1", Code: "cc"}))

	require.NoError(t, s.DeleteTenant(ctx, ten.ID))

	_, err := s.GetUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetClientByClientID(ctx, "c1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetTokenByAccess(ctx, "at")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.ConsumeAuthorizationCode(ctx, "c1", "cc")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTenantStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	ten := &core.Tenant{Name: "Acme", Slug: "acme", IsActive: true, Plan: "premium", MaxUsers: 50}
	require.NoError(t, s.CreateTenant(ctx, ten))
	require.NoError(t, s.CreateUser(ctx, &core.User{TenantID: ten.ID, Username: "a", Email: "a@x.com", IsActive: true}))
	require.NoError(t, s.CreateUser(ctx, &core.User{TenantID: ten.ID, Username: "b", Email: "b@x.com", IsActive: false}))
	require.NoError(t, s.CreateClient(ctx, &core.Client{TenantID: ten.ID, ClientID: "c1"}))

	now := time.Now()
	require.NoError(t, s.CreateToken(ctx, &core.Token{TenantID: ten.ID, ClientID: "c1", AccessToken: "live", AccessExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateToken(ctx, &core.Token{TenantID: ten.ID, ClientID: "c1", AccessToken: "dead", AccessExpiresAt: now.Add(-time.Hour)}))

	st, err := s.TenantStats(ctx, ten.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalUsers)
	assert.Equal(t, 1, st.ActiveUsers)
	assert.Equal(t, 1, st.TotalClients)
	assert.Equal(t, 1, st.ActiveTokens)
	assert.Equal(t, "premium", st.Plan)
	assert.Equal(t, 50, st.MaxUsers)
}
