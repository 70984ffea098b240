package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/http/middlewares"
	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/security/password"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/tenant"
	"github.com/varela-dev/multipass/internal/validation"
)

type tenantRegisterRequest struct {
	Name   string  `json:"name"`
	Slug   string  `json:"slug"`
	Domain *string `json:"domain,omitempty"`
	Plan   string  `json:"plan"`
	Owner  struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"owner"`
}

type tenantResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	Domain   *string `json:"domain,omitempty"`
	IsActive bool    `json:"is_active"`
	Plan     string  `json:"plan"`
	MaxUsers int     `json:"max_users"`
}

func toTenantResponse(t *core.Tenant) tenantResponse {
	return tenantResponse{
		ID: t.ID, Name: t.Name, Slug: t.Slug, Domain: t.Domain,
		IsActive: t.IsActive, Plan: t.Plan, MaxUsers: t.MaxUsers,
	}
}

// planMaxUsers fija el límite de usuarios por plan.
func planMaxUsers(plan string) int {
	switch plan {
	case "premium":
		return 1000
	case "standard":
		return 100
	default:
		return 10
	}
}

// NewTenantRegisterHandler da de alta tenant + owner en una transacción.
// Es el único endpoint de escritura sin tenant previo.
func NewTenantRegisterHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tenantRegisterRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
		if req.Name == "" || !validation.ValidSlug(req.Slug) {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error",
				"name y slug ([a-z0-9-]) son obligatorios", httpx.CodeValidation)
			return
		}
		if req.Owner.Username == "" || !validation.ValidEmail(req.Owner.Email) || len(req.Owner.Password) < 8 {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error",
				"owner.username, owner.email y owner.password (mínimo 8) son obligatorios", httpx.CodeValidation)
			return
		}
		if req.Plan == "" {
			req.Plan = "free"
		}

		hash, err := password.Hash(password.Default, req.Owner.Password)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		ten := &core.Tenant{
			Name:     req.Name,
			Slug:     req.Slug,
			Domain:   req.Domain,
			IsActive: true,
			Plan:     req.Plan,
			MaxUsers: planMaxUsers(req.Plan),
		}
		owner := &core.User{
			Username:     strings.TrimSpace(req.Owner.Username),
			Email:        strings.TrimSpace(req.Owner.Email),
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := c.Store.CreateTenantWithOwner(r.Context(), ten, owner); err != nil {
			if errors.Is(err, core.ErrConflict) {
				httpx.WriteError(w, http.StatusConflict, "tenant_exists",
					"slug o domain ya registrado", httpx.CodeTenantConflict)
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}

		logger.From(r.Context()).Info("tenant registered",
			logger.TenantID(ten.ID), logger.TenantSlug(ten.Slug))
		httpx.WriteJSON(w, http.StatusCreated, map[string]any{
			"tenant": toTenantResponse(ten),
			"owner":  toUserResponse(owner),
		})
	}
}

// NewTenantListHandler lista tenants activos. Expone solo datos públicos.
func NewTenantListHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenants, err := c.Store.ListTenants(r.Context())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		out := make([]tenantResponse, 0, len(tenants))
		for i := range tenants {
			if tenants[i].IsActive {
				out = append(out, toTenantResponse(&tenants[i]))
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"tenants": out})
	}
}

// NewTenantInfoHandler devuelve el tenant resuelto del path.
func NewTenantInfoHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ten, _ := tenant.FromContext(r.Context())
		httpx.WriteJSON(w, http.StatusOK, toTenantResponse(ten))
	}
}

// requireTenantAdmin corta si la sesión no es admin/owner del tenant.
func requireTenantAdmin(w http.ResponseWriter, r *http.Request) bool {
	sess := middlewares.GetSession(r.Context())
	if sess == nil || (sess.Role != core.RoleAdmin && sess.Role != core.RoleOwner) {
		httpx.WriteError(w, http.StatusForbidden, "forbidden",
			"se requiere rol admin u owner", httpx.CodeForbidden)
		return false
	}
	return true
}

// NewTenantStatsHandler resume uso del tenant para el panel admin.
func NewTenantStatsHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireTenantAdmin(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())
		st, err := c.Store.TenantStats(r.Context(), ten.ID, time.Now())
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, st)
	}
}

// NewTenantUsersHandler lista los usuarios del tenant (admin).
func NewTenantUsersHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireTenantAdmin(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())
		users, err := c.Store.ListUsersInTenant(r.Context(), ten.ID)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		out := make([]userResponse, 0, len(users))
		for i := range users {
			out = append(out, toUserResponse(&users[i]))
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
	}
}

type adminUserCreateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// NewTenantUserCreateHandler da de alta un user con rol explícito (admin).
// A diferencia del self-service, acá el rol puede ser admin de entrada.
func NewTenantUserCreateHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireTenantAdmin(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())

		var req adminUserCreateRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)
		if req.Role == "" {
			req.Role = core.RoleUser
		}
		if req.Username == "" || !validation.ValidEmail(req.Email) || len(req.Password) < 8 {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error",
				"username, email y password (mínimo 8) son obligatorios", httpx.CodeValidation)
			return
		}
		if req.Role != core.RoleUser && req.Role != core.RoleAdmin {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error",
				"role debe ser user o admin", httpx.CodeValidation)
			return
		}

		hash, err := password.Hash(password.Default, req.Password)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		u := &core.User{
			TenantID:     ten.ID,
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         req.Role,
			IsActive:     true,
		}
		if err := c.Store.CreateUser(r.Context(), u); err != nil {
			if errors.Is(err, core.ErrConflict) {
				httpx.WriteError(w, http.StatusConflict, "user_exists",
					"username o email ya registrado en este tenant", httpx.CodeUserConflict)
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
	}
}

type roleUpdateRequest struct {
	Role string `json:"role"`
}

// NewTenantUserRoleHandler cambia el rol de un user del tenant (admin).
// El rol owner no se asigna por acá.
func NewTenantUserRoleHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireTenantAdmin(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())
		userID := chi.URLParam(r, "userID")

		var req roleUpdateRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		if req.Role != core.RoleUser && req.Role != core.RoleAdmin {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error",
				"role debe ser user o admin", httpx.CodeValidation)
			return
		}

		if err := c.Store.UpdateUserRole(r.Context(), ten.ID, userID, req.Role); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "usuario inexistente en el tenant", httpx.CodeValidation)
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		logger.From(r.Context()).Info("user role updated", logger.UserID(userID), logger.String("role", req.Role))
		w.WriteHeader(http.StatusNoContent)
	}
}

type activeUpdateRequest struct {
	Active *bool `json:"active"`
}

// NewTenantUserActiveHandler activa o desactiva un user del tenant (admin).
// Desactivar no borra: el user deja de poder loguearse y de contar para el
// límite del plan.
func NewTenantUserActiveHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireTenantAdmin(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())
		userID := chi.URLParam(r, "userID")

		var req activeUpdateRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		if req.Active == nil {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error",
				"active es obligatorio", httpx.CodeValidation)
			return
		}

		if err := c.Store.SetUserActive(r.Context(), ten.ID, userID, *req.Active); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				httpx.WriteError(w, http.StatusNotFound, "not_found", "usuario inexistente en el tenant", httpx.CodeValidation)
				return
			}
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		logger.From(r.Context()).Info("user active flag updated",
			logger.UserID(userID), logger.String("active", strconv.FormatBool(*req.Active)))
		w.WriteHeader(http.StatusNoContent)
	}
}

// NewTenantSettingsReadHandler devuelve los settings actuales (admin). Lee
// del store y no del contexto para no servir una copia cacheada vieja.
func NewTenantSettingsReadHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireTenantAdmin(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())
		fresh, err := c.Store.GetTenantByID(r.Context(), ten.ID)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"settings": fresh.Settings})
	}
}

// NewTenantDeactivateHandler desactiva el tenant (solo owner). Es un soft
// delete: los datos quedan pero el resolver deja de encontrarlo.
func NewTenantDeactivateHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middlewares.GetSession(r.Context())
		if sess == nil || sess.Role != core.RoleOwner {
			httpx.WriteError(w, http.StatusForbidden, "forbidden",
				"se requiere rol owner", httpx.CodeForbidden)
			return
		}
		ten, _ := tenant.FromContext(r.Context())
		if err := c.Store.SetTenantActive(r.Context(), ten.ID, false); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		c.Resolver.Invalidate(r.Context(), ten)
		logger.From(r.Context()).Info("tenant deactivated", logger.TenantID(ten.ID))
		w.WriteHeader(http.StatusNoContent)
	}
}

// NewTenantSettingsHandler reemplaza el blob de settings del tenant (admin).
func NewTenantSettingsHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireTenantAdmin(w, r) {
			return
		}
		ten, _ := tenant.FromContext(r.Context())

		var settings map[string]any
		if !httpx.ReadJSON(w, r, &settings) {
			return
		}
		if err := c.Store.UpdateTenantSettings(r.Context(), ten.ID, settings); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
