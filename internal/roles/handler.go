package roles

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
)

// Handler wires HTTP endpoints for role management.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers role routes. Role management is gated on the
// users resource, same as the account screens that surface it.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAccess(rbac.ResourceUsers, rbac.OpRead))
		r.Get("/", h.list)
		r.Get("/{roleID}", h.get)
		r.Get("/{roleID}/check", h.check)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAccess(rbac.ResourceUsers, rbac.OpUpdate))
		r.Post("/", h.create)
		r.Put("/{roleID}/permissions", h.updatePermissions)
		r.Delete("/{roleID}", h.delete)
	})
}

type createRoleRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Permissions rbac.PermissionMap `json:"permissions"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	role, err := h.service.Create(r.Context(), actorID(r), req.Name, req.Description, req.Permissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if all == nil {
		all = []Role{}
	}
	httpx.JSON(w, http.StatusOK, all)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	role, err := h.service.Get(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

type updatePermissionsRequest struct {
	Permissions rbac.PermissionMap `json:"permissions"`
}

func (h *Handler) updatePermissions(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.UpdatePermissions(r.Context(), actorID(r), chi.URLParam(r, "roleID"), req.Permissions); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorID(r), chi.URLParam(r, "roleID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		id = rbac.Wildcard
	}
	allowed, err := h.service.CheckRoleAccess(r.Context(), chi.URLParam(r, "roleID"), rbac.ResourceType(q.Get("resource")), q.Get("operation"), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

func actorID(r *http.Request) string {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return p.ID
	}
	return ""
}
