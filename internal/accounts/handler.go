package accounts

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/roles"
)

// Handler wires HTTP endpoints for principal management, direct grants,
// and role assignment.
type Handler struct {
	logger  *slog.Logger
	service *Service
	grants  *rbac.GrantManager
	roles   *roles.Service
	guard   rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, grants *rbac.GrantManager, rolesService *roles.Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, grants: grants, roles: rolesService, guard: guard}
}

// MountRoutes registers account routes, gated on the users resource.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAccess(rbac.ResourceUsers, rbac.OpRead))
		r.Get("/", h.list)
		r.Get("/{userID}", h.get)
		r.Get("/{userID}/summary", h.summary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAccess(rbac.ResourceUsers, rbac.OpUpdate))
		r.Post("/", h.create)
		r.Patch("/{userID}", h.updateInfo)
		r.Put("/{userID}/password", h.updatePassword)
		r.Put("/{userID}/roles", h.assignRoles)
		r.Delete("/{userID}/roles/{roleID}", h.removeRole)
		r.Post("/{userID}/grants", h.grant)
		r.Delete("/{userID}/grants", h.revoke)
		r.Delete("/{userID}/grants/{resource}/{resourceID}", h.clearAccess)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAccess(rbac.ResourceUsers, rbac.OpDelete))
		r.Delete("/{userID}", h.delete)
	})
}

// stringList accepts either a JSON string or an array of strings, so
// callers may pass a single resource id without wrapping it.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = stringList(many)
	return nil
}

type createAccountRequest struct {
	Email         string             `json:"email"`
	Username      string             `json:"username"`
	Phone         string             `json:"phone"`
	Password      string             `json:"password"`
	Role          string             `json:"role"`
	Roles         []string           `json:"roles"`
	AccessControl rbac.PermissionMap `json:"accessControl"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	account, err := h.service.Create(r.Context(), actorID(r), CreateInput{
		Email:         req.Email,
		Username:      req.Username,
		Phone:         req.Phone,
		Password:      req.Password,
		Role:          req.Role,
		Roles:         req.Roles,
		AccessControl: req.AccessControl,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if all == nil {
		all = []Account{}
	}
	httpx.JSON(w, http.StatusOK, all)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type updateInfoRequest struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
}

func (h *Handler) updateInfo(w http.ResponseWriter, r *http.Request) {
	var req updateInfoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.UpdateInfo(r.Context(), actorID(r), chi.URLParam(r, "userID"), UpdateInfoInput{Email: req.Email, Username: req.Username}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updatePasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.UpdatePassword(r.Context(), actorID(r), chi.URLParam(r, "userID"), req.Password); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorID(r), chi.URLParam(r, "userID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	var req assignRolesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.roles.AssignUserRoles(r.Context(), actorID(r), chi.URLParam(r, "userID"), req.Roles); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.RemoveUserRole(r.Context(), actorID(r), chi.URLParam(r, "userID"), chi.URLParam(r, "roleID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantRequest struct {
	Resource    rbac.ResourceType `json:"resource"`
	Operations  []rbac.Operation  `json:"operations"`
	ResourceIDs stringList        `json:"resourceIds"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.grants.Grant(r.Context(), actorID(r), chi.URLParam(r, "userID"), req.Resource, normalizeOps(req.Operations), req.ResourceIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.grants.Revoke(r.Context(), actorID(r), chi.URLParam(r, "userID"), req.Resource, normalizeOps(req.Operations), req.ResourceIDs); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearAccess(w http.ResponseWriter, r *http.Request) {
	rt := rbac.ResourceType(chi.URLParam(r, "resource"))
	if err := h.grants.ClearResourceAccess(r.Context(), actorID(r), chi.URLParam(r, "userID"), rt, chi.URLParam(r, "resourceID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// normalizeOps maps client-supplied operation spellings onto stored codes.
func normalizeOps(ops []rbac.Operation) []rbac.Operation {
	out := make([]rbac.Operation, len(ops))
	for i, op := range ops {
		out[i] = rbac.NormalizeOperation(string(op))
	}
	return out
}

func actorID(r *http.Request) string {
	if p := rbac.PrincipalFromContext(r.Context()); p != nil {
		return p.ID
	}
	return ""
}
