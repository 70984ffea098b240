package handlers

import (
	"net/http"
	"strings"
)

// clientCredentials saca client_id/client_secret de Basic auth o del form.
// Basic gana si está presente (RFC 6749 §2.3.1).
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok {
		return id, secret
	}
	return strings.TrimSpace(r.PostForm.Get("client_id")),
		strings.TrimSpace(r.PostForm.Get("client_secret"))
}

// noStore marca la respuesta como no cacheable; obligatorio para endpoints
// que devuelven tokens.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
