// Package session emite y verifica los JWT de sesión del login web.
// Son cookies de primera parte para /oauth/authorize; no son los access
// tokens OAuth, que son opacos y viven en el store.
package session

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

const CookieName = "multipass_session"

var ErrInvalid = errors.New("session: invalid token")

// Claims viaja dentro del JWT de sesión.
type Claims struct {
	TenantID string `json:"tid"`
	Role     string `json:"role"`
	jwtv5.RegisteredClaims
}

type Manager struct {
	secret []byte
	iss    string
	ttl    time.Duration
}

func NewManager(secret string, iss string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{secret: []byte(secret), iss: iss, ttl: ttl}
}

// TTL expone la vigencia configurada (para el Max-Age de la cookie).
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue firma una sesión HS256 para el user dentro de su tenant.
func (m *Manager) Issue(userID, tenantID, role string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    m.iss,
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(m.ttl)),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tk.SignedString(m.secret)
}

// Verify valida firma, exp e iss, y devuelve los claims.
func (m *Manager) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tk, err := jwtv5.ParseWithClaims(raw, claims, func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(m.iss), jwtv5.WithExpirationRequired())
	if err != nil || !tk.Valid {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
