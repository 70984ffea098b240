package pg

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/varela-dev/multipass/internal/store/core"
)

const tokenCols = `id, tenant_id, user_id, client_id, token_type, access_token,
refresh_token, scope, revoked, issued_at, access_expires_at, refresh_expires_at`

func scanToken(row interface{ Scan(...any) error }) (*core.Token, error) {
	var t core.Token
	if err := row.Scan(&t.ID, &t.TenantID, &t.UserID, &t.ClientID, &t.TokenType,
		&t.AccessToken, &t.RefreshToken, &t.Scope, &t.Revoked, &t.IssuedAt,
		&t.AccessExpiresAt, &t.RefreshExpiresAt); err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func insertToken(ctx context.Context, q querier, t *core.Token) error {
	const sql = `
INSERT INTO token (id, tenant_id, user_id, client_id, token_type, access_token,
                   refresh_token, scope, revoked, issued_at, access_expires_at, refresh_expires_at)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, false, $8, $9, $10)
RETURNING id`
	err := q.QueryRow(ctx, sql, t.TenantID, t.UserID, t.ClientID, t.TokenType,
		t.AccessToken, t.RefreshToken, t.Scope, t.IssuedAt,
		t.AccessExpiresAt, t.RefreshExpiresAt).
		Scan(&t.ID)
	if err != nil {
		if isUnique(err) {
			return core.ErrConflict
		}
		return err
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) CreateToken(ctx context.Context, t *core.Token) error {
	return insertToken(ctx, s.pool, t)
}

func (s *Store) GetTokenByAccess(ctx context.Context, accessToken string) (*core.Token, error) {
	const q = `SELECT ` + tokenCols + ` FROM token WHERE access_token = $1`
	return scanToken(s.pool.QueryRow(ctx, q, accessToken))
}

func (s *Store) GetTokenByRefresh(ctx context.Context, refreshToken string) (*core.Token, error) {
	const q = `SELECT ` + tokenCols + ` FROM token WHERE refresh_token = $1`
	return scanToken(s.pool.QueryRow(ctx, q, refreshToken))
}

func (s *Store) RevokeToken(ctx context.Context, id string) error {
	const q = `UPDATE token SET revoked = true WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// RotateToken revoca el par viejo y persiste el nuevo en una transacción.
// El UPDATE condicionado a NOT revoked hace que de dos rotaciones
// concurrentes del mismo refresh gane exactamente una.
func (s *Store) RotateToken(ctx context.Context, oldID string, newTok *core.Token) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `UPDATE token SET revoked = true WHERE id = $1 AND NOT revoked`
	tag, err := tx.Exec(ctx, q, oldID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// ya revocado o inexistente: distinguimos para reuse detection
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM token WHERE id = $1)`, oldID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return core.ErrConflict
		}
		return core.ErrNotFound
	}

	if err := insertToken(ctx, tx, newTok); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
