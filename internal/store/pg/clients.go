package pg

import (
	"context"

	"github.com/varela-dev/multipass/internal/store/core"
)

const clientCols = `id, tenant_id, client_id, client_secret, name, redirect_uris,
grant_types, response_types, scope, token_endpoint_auth_method, user_id, created_at`

func scanClient(row interface{ Scan(...any) error }) (*core.Client, error) {
	var c core.Client
	if err := row.Scan(&c.ID, &c.TenantID, &c.ClientID, &c.ClientSecret, &c.Name,
		&c.RedirectURIs, &c.GrantTypes, &c.ResponseTypes, &c.Scope,
		&c.TokenEndpointAuthMethod, &c.UserID, &c.CreatedAt); err != nil {
		if noRows(err) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	const q = `
INSERT INTO client (id, tenant_id, client_id, client_secret, name, redirect_uris,
                    grant_types, response_types, scope, token_endpoint_auth_method, user_id)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`
	err := s.pool.QueryRow(ctx, q, c.TenantID, c.ClientID, c.ClientSecret, c.Name,
		c.RedirectURIs, c.GrantTypes, c.ResponseTypes, c.Scope,
		c.TokenEndpointAuthMethod, c.UserID).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUnique(err) {
			return core.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*core.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM client WHERE client_id = $1`
	return scanClient(s.pool.QueryRow(ctx, q, clientID))
}

func (s *Store) ListClientsByUser(ctx context.Context, tenantID, userID string) ([]core.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM client WHERE tenant_id = $1 AND user_id = $2 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
