// Package token genera los valores opacos del servidor: codes, access y
// refresh tokens, client_id y client_secret.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// Longitudes en bytes crudos de entropía. Mínimo 24 por diseño; los valores
// emitidos van en base64url sin padding.
const (
	ClientIDBytes     = 24
	ClientSecretBytes = 48
	CodeBytes         = 32
	AccessTokenBytes  = 32
	RefreshTokenBytes = 32
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
// Es el transform de PKCE S256 sobre el code_verifier.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
