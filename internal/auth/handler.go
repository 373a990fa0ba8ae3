package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	compiler       *rbac.Compiler
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, compiler *rbac.Compiler, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		compiler:       compiler,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Post("/refresh", h.handleRefresh)
}

// handleCSRF issues the token clients must echo in the X-CSRF-Token
// header on every mutating request, login included.
func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"token": token})
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identifier and password are required")
		return
	}

	principal, err := h.service.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}

	// Compile effective permissions before the first authorization query
	// runs, so the fresh session never serves the direct-grants fallback.
	if compiled, err := h.compiler.Snapshot(r.Context(), principal.ID); err == nil {
		principal = compiled
	} else {
		h.logger.Warn("compile at login", slog.String("user_id", principal.ID), slog.Any("error", err))
		principal.EffectivePermissions = rbac.PermissionMap{}
	}
	principal.Expiry = time.Now().UTC().Add(h.sessionManager.TTL())

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	record, err := json.Marshal(principal)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(principal.ID)
	sess.SetRecord(record)

	if err := h.service.RegisterSession(r.Context(), sess.ID, principal.ID, principal.Expiry, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, principal)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p := rbac.PrincipalFromContext(r.Context())
	if p == nil || p.Expired(time.Now()) {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// handleRefresh recompiles the current principal's effective permissions
// and replaces the session record wholesale, keeping its original expiry.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	current := rbac.PrincipalFromContext(r.Context())
	if current == nil || current.Expired(time.Now()) {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	fresh, err := h.compiler.Snapshot(r.Context(), current.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Account deleted since login; the session rides out its expiry
			// with an empty effective map.
			fresh = current
			fresh.EffectivePermissions = rbac.PermissionMap{}
		} else {
			h.logger.Error("refresh snapshot", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}
	fresh.Expiry = current.Expiry

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	record, err := json.Marshal(fresh)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetRecord(record)
	httpx.JSON(w, http.StatusOK, fresh)
}
