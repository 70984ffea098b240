package middlewares

import (
	"encoding/json"
	"net/http"
)

// writeJSONError replica el envelope del paquete http padre sin importarlo
// (evita el ciclo http -> middlewares -> http).
func writeJSONError(w http.ResponseWriter, status int, code, desc string, errCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rid := w.Header().Get("X-Request-ID")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             code,
		"error_description": desc,
		"error_code":        errCode,
		"request_id":        rid,
	})
}
