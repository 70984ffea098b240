// Package memory implementa core.Repository en memoria.
//
// Se usa en desarrollo y en los tests del grant engine. La semántica de
// unicidad y atomicidad replica la del backend postgres: conflictos por
// (tenant, username/email) y slug/domain globales, consumo de codes
// delete-on-read bajo lock, rotación de tokens atómica.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varela-dev/multipass/internal/store/core"
)

type Store struct {
	mu sync.RWMutex

	tenants map[string]*core.Tenant            // id -> tenant
	users   map[string]*core.User              // id -> user
	clients map[string]*core.Client            // id -> client
	codes   map[string]*core.AuthorizationCode // code -> code row
	tokens  map[string]*core.Token             // id -> token
}

func New() *Store {
	return &Store{
		tenants: make(map[string]*core.Tenant),
		users:   make(map[string]*core.User),
		clients: make(map[string]*core.Client),
		codes:   make(map[string]*core.AuthorizationCode),
		tokens:  make(map[string]*core.Token),
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

// ────────────────────────── Tenants ──────────────────────────

func (s *Store) CreateTenant(ctx context.Context, t *core.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTenantLocked(t)
}

func (s *Store) createTenantLocked(t *core.Tenant) error {
	for _, ex := range s.tenants {
		if ex.Slug == t.Slug {
			return core.ErrConflict
		}
		if t.Domain != nil && ex.Domain != nil && *ex.Domain == *t.Domain {
			return core.ErrConflict
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Settings == nil {
		t.Settings = map[string]any{}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *Store) CreateTenantWithOwner(ctx context.Context, t *core.Tenant, owner *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createTenantLocked(t); err != nil {
		return err
	}
	owner.TenantID = t.ID
	owner.Role = core.RoleOwner
	if err := s.createUserLocked(owner); err != nil {
		// rollback del tenant recién creado: o persisten ambos o ninguno
		delete(s.tenants, t.ID)
		return err
	}
	return nil
}

func (s *Store) GetTenantByID(ctx context.Context, id string) (*core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetTenantByDomain(ctx context.Context, domain string) (*core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Domain != nil && *t.Domain == domain {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListTenants(ctx context.Context) ([]core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateTenantSettings(ctx context.Context, tenantID string, settings map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return core.ErrNotFound
	}
	if t.Settings == nil {
		t.Settings = map[string]any{}
	}
	for k, v := range settings {
		t.Settings[k] = v
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetTenantActive(ctx context.Context, tenantID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return core.ErrNotFound
	}
	t.IsActive = active
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenantID]; !ok {
		return core.ErrNotFound
	}
	delete(s.tenants, tenantID)
	for id, u := range s.users {
		if u.TenantID == tenantID {
			delete(s.users, id)
		}
	}
	for id, c := range s.clients {
		if c.TenantID == tenantID {
			delete(s.clients, id)
		}
	}
	for code, ac := range s.codes {
		if ac.TenantID == tenantID {
			delete(s.codes, code)
		}
	}
	for id, tk := range s.tokens {
		if tk.TenantID == tenantID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *Store) TenantStats(ctx context.Context, tenantID string, now time.Time) (*core.TenantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, core.ErrNotFound
	}
	st := &core.TenantStats{Plan: t.Plan, MaxUsers: t.MaxUsers}
	for _, u := range s.users {
		if u.TenantID != tenantID {
			continue
		}
		st.TotalUsers++
		if u.IsActive {
			st.ActiveUsers++
		}
	}
	for _, c := range s.clients {
		if c.TenantID == tenantID {
			st.TotalClients++
		}
	}
	for _, tk := range s.tokens {
		if tk.TenantID == tenantID && !tk.Revoked && !tk.AccessExpired(now) {
			st.ActiveTokens++
		}
	}
	return st, nil
}

// ────────────────────────── Users ──────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(u)
}

func (s *Store) createUserLocked(u *core.User) error {
	for _, ex := range s.users {
		if ex.TenantID != u.TenantID {
			continue
		}
		if strings.EqualFold(ex.Username, u.Username) || strings.EqualFold(ex.Email, u.Email) {
			return core.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, core.ErrNotFound
}

func (s *Store) FindUserInTenant(ctx context.Context, tenantID, username string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(username)
	for _, u := range s.users {
		if u.TenantID == tenantID && (strings.ToLower(u.Username) == needle || strings.ToLower(u.Email) == needle) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListUsersInTenant(ctx context.Context, tenantID string) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.User
	for _, u := range s.users {
		if u.TenantID == tenantID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountActiveUsers(ctx context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.TenantID == tenantID && u.IsActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateUserRole(ctx context.Context, tenantID, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.TenantID != tenantID {
		return core.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, tenantID, userID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.TenantID != tenantID {
		return core.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ────────────────────────── Clients ──────────────────────────

func (s *Store) CreateClient(ctx context.Context, c *core.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.clients {
		if ex.ClientID == c.ClientID {
			return core.ErrConflict
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *Store) GetClientByClientID(ctx context.Context, clientID string) (*core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if c.ClientID == clientID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) ListClientsByUser(ctx context.Context, tenantID, userID string) ([]core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Client
	for _, c := range s.clients {
		if c.TenantID == tenantID && c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ────────────────────────── Authorization codes ──────────────────────────

func (s *Store) CreateAuthorizationCode(ctx context.Context, ac *core.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ac.ID == "" {
		ac.ID = uuid.NewString()
	}
	cp := *ac
	s.codes[ac.Code] = &cp
	return nil
}

// ConsumeAuthorizationCode borra bajo lock: de N canjes concurrentes del
// mismo code a lo sumo uno obtiene la fila, el resto ve ErrNotFound.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, clientID, code string) (*core.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := s.codes[code]
	if !ok || ac.ClientID != clientID {
		return nil, core.ErrNotFound
	}
	delete(s.codes, code)
	cp := *ac
	return &cp, nil
}

// ────────────────────────── Tokens ──────────────────────────

func (s *Store) CreateToken(ctx context.Context, t *core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createTokenLocked(t)
}

func (s *Store) createTokenLocked(t *core.Token) error {
	for _, ex := range s.tokens {
		if ex.AccessToken == t.AccessToken {
			return core.ErrConflict
		}
		if t.RefreshToken != nil && ex.RefreshToken != nil && *ex.RefreshToken == *t.RefreshToken {
			return core.ErrConflict
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	s.tokens[t.ID] = &cp
	return nil
}

func (s *Store) GetTokenByAccess(ctx context.Context, accessToken string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.AccessToken == accessToken {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) GetTokenByRefresh(ctx context.Context, refreshToken string) (*core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.RefreshToken != nil && *t.RefreshToken == refreshToken {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) RevokeToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return core.ErrNotFound
	}
	t.Revoked = true
	return nil
}

// RotateToken revoca el par viejo y persiste el nuevo bajo el mismo lock.
func (s *Store) RotateToken(ctx context.Context, oldID string, newTok *core.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokens[oldID]
	if !ok {
		return core.ErrNotFound
	}
	if old.Revoked {
		return core.ErrConflict
	}
	old.Revoked = true
	if err := s.createTokenLocked(newTok); err != nil {
		old.Revoked = false
		return err
	}
	return nil
}

var _ core.Repository = (*Store)(nil)
