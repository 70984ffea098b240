package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueAccess(t *testing.T, f *fixture, scope string) string {
	t.Helper()
	resp, err := f.engine.Token(context.Background(), f.tenant, &TokenRequest{
		GrantType: GrantPassword, ClientID: f.confidential.ClientID, ClientSecret: clientSecret,
		Username: "alice", Password: userPassword, Scope: scope,
	})
	require.NoError(t, err)
	return resp.AccessToken
}

func TestGuardValid(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.store)
	access := issueAccess(t, f, "read write")

	p, err := g.Validate(context.Background(), f.tenant.ID, access, "read")
	require.NoError(t, err)
	require.NotNil(t, p.UserID)
	assert.Equal(t, f.user.ID, *p.UserID)
	assert.Equal(t, f.tenant.ID, p.TenantID)
	assert.Equal(t, f.confidential.ClientID, p.ClientID)
	assert.True(t, p.HasScope("write"))
	assert.False(t, p.HasScope("admin"))
}

func TestGuardMissingBearer(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.store)
	_, err := g.Validate(context.Background(), f.tenant.ID, "")
	assert.Equal(t, "invalid_token", oauthErr(t, err).Code)
}

func TestGuardUnknownToken(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.store)
	_, err := g.Validate(context.Background(), f.tenant.ID, "garbage")
	oe := oauthErr(t, err)
	assert.Equal(t, "invalid_token", oe.Code)
	assert.Equal(t, 401, oe.Status)
}

func TestGuardRevokedToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)
	access := issueAccess(t, f, "read")

	require.NoError(t, f.engine.Revoke(ctx, f.tenant, f.confidential.ClientID, clientSecret, access))

	_, err := g.Validate(ctx, f.tenant.ID, access)
	assert.Equal(t, "invalid_token", oauthErr(t, err).Code)
}

func TestGuardExpiredToken(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.store)
	access := issueAccess(t, f, "read")

	g.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := g.Validate(context.Background(), f.tenant.ID, access)
	assert.Equal(t, "invalid_token", oauthErr(t, err).Code)
}

func TestGuardInsufficientScope(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.store)
	access := issueAccess(t, f, "read")

	_, err := g.Validate(context.Background(), f.tenant.ID, access, "write")
	oe := oauthErr(t, err)
	assert.Equal(t, "insufficient_scope", oe.Code)
	assert.Equal(t, 403, oe.Status)
}

func TestGuardTenantMismatch(t *testing.T) {
	f := newFixture(t)
	g := NewGuard(f.store)
	access := issueAccess(t, f, "read")

	_, err := g.Validate(context.Background(), "other-tenant", access)
	assert.Equal(t, "invalid_token", oauthErr(t, err).Code)
}

func TestGuardMachineToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := NewGuard(f.store)
	resp, err := f.engine.Token(ctx, f.tenant, &TokenRequest{
		GrantType: GrantClientCredentials, ClientID: f.confidential.ClientID, ClientSecret: clientSecret,
	})
	require.NoError(t, err)

	p, err := g.Validate(ctx, f.tenant.ID, resp.AccessToken)
	require.NoError(t, err)
	assert.Nil(t, p.UserID)
}
