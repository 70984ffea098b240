package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/oauth"
)

// Códigos numéricos internos para soporte. Familia 1xxx: request/formato,
// 2xxx: auth y OAuth, 3xxx: tenants, 4xxx: infraestructura.
const (
	CodeInvalidJSON    = 1102
	CodeInvalidForm    = 1103
	CodeValidation     = 1201
	CodeUnauthorized   = 2101
	CodeForbidden      = 2102
	CodeOAuthProto     = 2201
	CodeTenantNotFound = 3101
	CodeTenantConflict = 3102
	CodeUserConflict   = 3201
	CodeStoreUnhealthy = 4101
	CodeRateLimited    = 4201
	CodeInternal       = 4501
)

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCode        int    `json:"error_code,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error:            code,
		ErrorDescription: desc,
		ErrorCode:        errCode,
		RequestID:        rid,
	})
}

// WriteOAuthError serializa un error del engine con su status de protocolo.
func WriteOAuthError(w http.ResponseWriter, err error) {
	oe := oauth.AsError(err)
	WriteError(w, oe.Status, oe.Code, oe.Description, CodeOAuthProto)
}

// WriteJSON: respuesta JSON estándar
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica JSON de forma tolerante (no falla por campos extra).
// Valida Content-Type y limita el body a 1MB.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "invalid_json", "Content-Type debe ser application/json", CodeInvalidJSON)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid_json", "json inválido", CodeInvalidJSON)
		return false
	}
	return true
}

// ReadForm parsea application/x-www-form-urlencoded con límite de 64KB.
func ReadForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "form inválido", CodeInvalidForm)
		return false
	}
	return true
}
