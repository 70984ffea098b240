package pg

import (
	"context"

	"github.com/varela-dev/multipass/internal/store/core"
)

func (s *Store) CreateAuthorizationCode(ctx context.Context, ac *core.AuthorizationCode) error {
	const q = `
INSERT INTO authorization_code (id, tenant_id, user_id, client_id, code, redirect_uri,
                                scope, nonce, code_challenge, code_challenge_method,
                                issued_at, expires_at)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`
	err := s.pool.QueryRow(ctx, q, ac.TenantID, ac.UserID, ac.ClientID, ac.Code,
		ac.RedirectURI, ac.Scope, ac.Nonce, ac.CodeChallenge, ac.CodeChallengeMethod,
		ac.IssuedAt, ac.ExpiresAt).
		Scan(&ac.ID)
	if err != nil {
		if isUnique(err) {
			return core.ErrConflict
		}
		return err
	}
	return nil
}

// ConsumeAuthorizationCode reclama el code con DELETE ... RETURNING: la fila
// desaparece en la misma sentencia que la lee, así un solo canje concurrente
// puede ganar. La expiración la juzga el engine con la fila devuelta.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, clientID, code string) (*core.AuthorizationCode, error) {
	const q = `
DELETE FROM authorization_code
WHERE client_id = $1 AND code = $2
RETURNING id, tenant_id, user_id, client_id, code, redirect_uri, scope, nonce,
          code_challenge, code_challenge_method, issued_at, expires_at`
	var ac core.AuthorizationCode
	err := s.pool.QueryRow(ctx, q, clientID, code).
		Scan(&ac.ID, &ac.TenantID, &ac.UserID, &ac.ClientID, &ac.Code, &ac.RedirectURI,
			&ac.Scope, &ac.Nonce, &ac.CodeChallenge, &ac.CodeChallengeMethod,
			&ac.IssuedAt, &ac.ExpiresAt)
	if err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &ac, nil
}
