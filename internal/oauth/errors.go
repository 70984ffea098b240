package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error es un error OAuth2 con el código de protocolo (RFC 6749 §5.2) y el
// status HTTP con el que se reporta. Los handlers lo serializan tal cual.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithDescription devuelve una copia con la descripción dada.
func (e *Error) WithDescription(format string, args ...any) *Error {
	cp := *e
	cp.Description = fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrInvalidRequest = &Error{Code: "invalid_request", Status: http.StatusBadRequest}
	// invalid_client va con 401 para que el client sepa que falló su auth.
	ErrInvalidClient          = &Error{Code: "invalid_client", Status: http.StatusUnauthorized}
	ErrInvalidGrant           = &Error{Code: "invalid_grant", Status: http.StatusBadRequest}
	ErrUnauthorizedClient     = &Error{Code: "unauthorized_client", Status: http.StatusBadRequest}
	ErrUnsupportedGrantType   = &Error{Code: "unsupported_grant_type", Status: http.StatusBadRequest}
	ErrInvalidScope           = &Error{Code: "invalid_scope", Status: http.StatusBadRequest}
	ErrUnsupportedRespType    = &Error{Code: "unsupported_response_type", Status: http.StatusBadRequest}
	ErrAccessDenied           = &Error{Code: "access_denied", Status: http.StatusForbidden}
	ErrServerError            = &Error{Code: "server_error", Status: http.StatusInternalServerError}
	ErrInvalidToken           = &Error{Code: "invalid_token", Status: http.StatusUnauthorized}
	ErrInsufficientScope      = &Error{Code: "insufficient_scope", Status: http.StatusForbidden}
	ErrTenantNotFound         = &Error{Code: "invalid_request", Description: "tenant could not be resolved", Status: http.StatusBadRequest}
	ErrLoginRequired          = &Error{Code: "login_required", Status: http.StatusUnauthorized}
	ErrConsentRequired        = &Error{Code: "consent_required", Status: http.StatusForbidden}
	ErrInvalidRedirectURI     = &Error{Code: "invalid_request", Description: "redirect_uri is not registered for this client", Status: http.StatusBadRequest}
	ErrClientCredentialsScope = &Error{Code: "invalid_scope", Description: "requested scope exceeds client registration", Status: http.StatusBadRequest}
)

// AsError extrae *Error si err es uno; si no, lo envuelve en server_error.
func AsError(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return ErrServerError
}
