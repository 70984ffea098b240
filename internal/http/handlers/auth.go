package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/varela-dev/multipass/internal/app"
	"github.com/varela-dev/multipass/internal/http/httpx"
	"github.com/varela-dev/multipass/internal/observability/logger"
	"github.com/varela-dev/multipass/internal/security/password"
	"github.com/varela-dev/multipass/internal/session"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/tenant"
	"github.com/varela-dev/multipass/internal/validation"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func toUserResponse(u *core.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, IsActive: u.IsActive}
}

// NewRegisterHandler da de alta un user dentro del tenant resuelto,
// respetando el límite de usuarios del plan.
func NewRegisterHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ten, _ := tenant.FromContext(r.Context())
		var req registerRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)
		if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error",
				"username, email y password (mínimo 8) son obligatorios", httpx.CodeValidation)
			return
		}
		if !validation.ValidEmail(req.Email) {
			httpx.WriteError(w, http.StatusBadRequest, "validation_error", "email inválido", httpx.CodeValidation)
			return
		}

		if ten.MaxUsers > 0 {
			n, err := c.Store.CountActiveUsers(r.Context(), ten.ID)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
				return
			}
			if n >= ten.MaxUsers {
				httpx.WriteError(w, http.StatusForbidden, "tenant_limit_reached",
					"el plan del tenant no admite más usuarios", httpx.CodeForbidden)
				return
			}
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
			Role:         core.RoleUser,
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

		logger.From(r.Context()).Info("user registered", logger.UserID(u.ID))
		httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewLoginHandler autentica contra el tenant resuelto y deja la cookie de
// sesión que usa /oauth/authorize.
func NewLoginHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ten, _ := tenant.FromContext(r.Context())
		var req loginRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}

		u, err := c.Store.FindUserInTenant(r.Context(), ten.ID, strings.TrimSpace(req.Username))
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		// misma respuesta para user inexistente, inactivo o password mal
		if err != nil || !u.IsActive || !password.Verify(req.Password, u.PasswordHash) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials",
				"usuario o password incorrectos", httpx.CodeUnauthorized)
			return
		}

		raw, err := c.Sessions.Issue(u.ID, ten.ID, u.Role)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "", httpx.CodeInternal)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    raw,
			Path:     "/",
			MaxAge:   int(c.Sessions.TTL().Seconds()),
			HttpOnly: true,
			Secure:   c.Cfg.IsProd(),
			SameSite: http.SameSiteLaxMode,
		})

		logger.From(r.Context()).Info("user logged in", logger.UserID(u.ID))
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(u)})
	}
}
