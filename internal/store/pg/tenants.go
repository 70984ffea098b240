package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/varela-dev/multipass/internal/store/core"
)

const tenantCols = `id, name, slug, domain, is_active, plan, max_users, settings, created_at, updated_at`

func scanTenant(row interface{ Scan(...any) error }) (*core.Tenant, error) {
	var t core.Tenant
	var settings []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Domain, &t.IsActive, &t.Plan,
		&t.MaxUsers, &settings, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (s *Store) CreateTenant(ctx context.Context, t *core.Tenant) error {
	settings, err := json.Marshal(orEmptyMap(t.Settings))
	if err != nil {
		return err
	}
	const q = `
INSERT INTO tenant (id, name, slug, domain, is_active, plan, max_users, settings)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`
	err = s.pool.QueryRow(ctx, q, t.Name, t.Slug, t.Domain, t.IsActive, t.Plan, t.MaxUsers, settings).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUnique(err) {
			return core.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) CreateTenantWithOwner(ctx context.Context, t *core.Tenant, owner *core.User) error {
	settings, err := json.Marshal(orEmptyMap(t.Settings))
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const qTenant = `
INSERT INTO tenant (id, name, slug, domain, is_active, plan, max_users, settings)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, qTenant, t.Name, t.Slug, t.Domain, t.IsActive, t.Plan, t.MaxUsers, settings).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUnique(err) {
			return core.ErrConflict
		}
		return err
	}

	owner.TenantID = t.ID
	owner.Role = core.RoleOwner
	const qOwner = `
INSERT INTO app_user (id, tenant_id, username, email, password_hash, role, is_active)
VALUES (gen_random_uuid(), $1, LOWER($2), LOWER($3), $4, $5, $6)
RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, qOwner, owner.TenantID, owner.Username, owner.Email,
		owner.PasswordHash, owner.Role, owner.IsActive).
		Scan(&owner.ID, &owner.CreatedAt, &owner.UpdatedAt)
	if err != nil {
		if isUnique(err) {
			return core.ErrConflict
		}
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) GetTenantByID(ctx context.Context, id string) (*core.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenant WHERE id = $1`
	return scanTenant(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*core.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenant WHERE slug = $1`
	return scanTenant(s.pool.QueryRow(ctx, q, slug))
}

func (s *Store) GetTenantByDomain(ctx context.Context, domain string) (*core.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenant WHERE domain = $1`
	return scanTenant(s.pool.QueryRow(ctx, q, domain))
}

func (s *Store) ListTenants(ctx context.Context) ([]core.Tenant, error) {
	const q = `SELECT ` + tenantCols + ` FROM tenant ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTenantSettings(ctx context.Context, tenantID string, settings map[string]any) error {
	raw, err := json.Marshal(orEmptyMap(settings))
	if err != nil {
		return err
	}
	const q = `UPDATE tenant SET settings = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, tenantID, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) SetTenantActive(ctx context.Context, tenantID string, active bool) error {
	const q = `UPDATE tenant SET is_active = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, tenantID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteTenant confía en los FK ON DELETE CASCADE del schema.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	const q = `DELETE FROM tenant WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) TenantStats(ctx context.Context, tenantID string, now time.Time) (*core.TenantStats, error) {
	const q = `
SELECT t.plan, t.max_users,
       (SELECT count(*) FROM app_user u WHERE u.tenant_id = t.id),
       (SELECT count(*) FROM app_user u WHERE u.tenant_id = t.id AND u.is_active),
       (SELECT count(*) FROM client c WHERE c.tenant_id = t.id),
       (SELECT count(*) FROM token k WHERE k.tenant_id = t.id AND NOT k.revoked AND k.access_expires_at > $2)
FROM tenant t WHERE t.id = $1`
	var st core.TenantStats
	err := s.pool.QueryRow(ctx, q, tenantID, now).
		Scan(&st.Plan, &st.MaxUsers, &st.TotalUsers, &st.ActiveUsers, &st.TotalClients, &st.ActiveTokens)
	if err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
