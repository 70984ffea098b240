// Package http arma la superficie HTTP del authorization server: router,
// middlewares, métricas y el envelope de errores.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/handlers"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/http/middlewares"
)

// NewRouter arma el router público de la API.
func NewRouter(c *app.Container) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithTenant(c.Resolver, httpx.CountTenantResolve))
	r.Use(middlewares.WithLogging(httpx.ObserveRequest))

	requireTenant := middlewares.RequireTenant()
	requireSession := middlewares.RequireSession(c.Sessions)

	var limited middlewares.Middleware = func(next http.Handler) http.Handler { return next }
	if c.Limiter != nil {
		limited = middlewares.WithRateLimit(c.Limiter)
	}

	r.Get("/healthz", handlers.NewHealthzHandler())
	r.Get("/readyz", handlers.NewReadyzHandler(c))

	r.Route("/oauth", func(r chi.Router) {
		r.Use(requireTenant)

		r.Method(http.MethodPost, "/register", middlewares.ChainFunc(handlers.NewRegisterHandler(c), limited))
		r.Method(http.MethodPost, "/login", middlewares.ChainFunc(handlers.NewLoginHandler(c), limited))

		r.Method(http.MethodGet, "/authorize", middlewares.ChainFunc(handlers.NewAuthorizeHandler(c), requireSession))
		r.Method(http.MethodPost, "/authorize", middlewares.ChainFunc(handlers.NewAuthorizeDecisionHandler(c), requireSession))

		r.Method(http.MethodPost, "/token", middlewares.ChainFunc(handlers.NewTokenHandler(c), limited))
		r.Post("/revoke", handlers.NewRevokeHandler(c))
		r.Method(http.MethodPost, "/introspect", middlewares.ChainFunc(handlers.NewIntrospectHandler(c), limited))

		r.Method(http.MethodGet, "/userinfo", middlewares.ChainFunc(handlers.NewUserinfoHandler(c), middlewares.RequireBearer(c.Guard)))

		r.Route("/client", func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/register", handlers.NewClientRegisterHandler(c))
			r.Get("/list", handlers.NewClientListHandler(c))
		})
	})

	r.Route("/tenants", func(r chi.Router) {
		r.Method(http.MethodPost, "/register", middlewares.ChainFunc(handlers.NewTenantRegisterHandler(c), limited))
		r.Get("/list", handlers.NewTenantListHandler(c))

		// rutas por slug: el resolver ya identificó el tenant por el path
		r.Route("/{slug}", func(r chi.Router) {
			r.Use(requireTenant)
			r.Get("/info", handlers.NewTenantInfoHandler(c))

			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Get("/stats", handlers.NewTenantStatsHandler(c))
				r.Get("/users", handlers.NewTenantUsersHandler(c))
				r.Post("/users", handlers.NewTenantUserCreateHandler(c))
				r.Put("/users/{userID}/role", handlers.NewTenantUserRoleHandler(c))
				r.Put("/users/{userID}/active", handlers.NewTenantUserActiveHandler(c))
				r.Get("/settings", handlers.NewTenantSettingsReadHandler(c))
				r.Put("/settings", handlers.NewTenantSettingsHandler(c))
				r.Delete("/", handlers.NewTenantDeactivateHandler(c))
			})
		})
	})

	return r
}
