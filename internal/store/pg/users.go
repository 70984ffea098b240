package pg

import (
	"context"

	"github.com/varela-dev/multipass/internal/store/core"
)

const userCols = `id, tenant_id, username, email, password_hash, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Username, &u.Email, &u.PasswordHash,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	const q = `
INSERT INTO app_user (id, tenant_id, username, email, password_hash, role, is_active)
VALUES (gen_random_uuid(), $1, LOWER($2), LOWER($3), $4, $5, $6)
RETURNING id, created_at, updated_at`
	err := s.pool.QueryRow(ctx, q, u.TenantID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsActive).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUnique(err) {
			return core.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user WHERE id = $1`
	return scanUser(s.pool.QueryRow(ctx, q, id))
}

// FindUserInTenant acepta username o email; el login no distingue.
func (s *Store) FindUserInTenant(ctx context.Context, tenantID, username string) (*core.User, error) {
	const q = `
SELECT ` + userCols + ` FROM app_user
WHERE tenant_id = $1 AND (username = LOWER($2) OR email = LOWER($2))`
	return scanUser(s.pool.QueryRow(ctx, q, tenantID, username))
}

func (s *Store) ListUsersInTenant(ctx context.Context, tenantID string) ([]core.User, error) {
	const q = `SELECT ` + userCols + ` FROM app_user WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) CountActiveUsers(ctx context.Context, tenantID string) (int, error) {
	const q = `SELECT count(*) FROM app_user WHERE tenant_id = $1 AND is_active`
	var n int
	if err := s.pool.QueryRow(ctx, q, tenantID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, tenantID, userID, role string) error {
	const q = `UPDATE app_user SET role = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, q, tenantID, userID, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, tenantID, userID string, active bool) error {
	const q = `UPDATE app_user SET is_active = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, q, tenantID, userID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}
