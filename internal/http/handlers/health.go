package handlers

import (
	"net/http"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
)

// NewHealthzHandler: liveness, siempre 200 si el proceso atiende.
func NewHealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NewReadyzHandler: readiness real, pinguea store y cache.
func NewReadyzHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"store": "ok", "cache": "ok"}
		status := http.StatusOK

		if err := c.Store.Ping(r.Context()); err != nil {
			checks["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := c.Cache.Ping(r.Context()); err != nil {
			checks["cache"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, status, map[string]any{"checks": checks})
	}
}
