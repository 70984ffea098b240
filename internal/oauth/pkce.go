package oauth

import (
	"crypto/subtle"

	"github.com/varela-dev/multipass/internal/security/token"
)

// Métodos PKCE soportados (RFC 7636).
const (
	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// verifyPKCE compara el verifier contra el challenge guardado en el code.
// Método vacío se interpreta como "plain", que es el default del RFC.
func verifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" {
		return false
	}
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}
	var derived string
	switch method {
	case PKCEMethodS256:
		derived = token.SHA256Base64URL(verifier)
	case PKCEMethodPlain, "":
		derived = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}
