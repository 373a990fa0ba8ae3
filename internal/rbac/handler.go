package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
)

// AuthzHandler exposes the query surface collaborators use to decide
// whether to render or allow an action.
type AuthzHandler struct {
	recorder DecisionRecorder
}

// NewAuthzHandler builds AuthzHandler instance.
func NewAuthzHandler(recorder DecisionRecorder) *AuthzHandler {
	return &AuthzHandler{recorder: recorder}
}

// MountRoutes registers authorization query routes.
func (h *AuthzHandler) MountRoutes(r chi.Router) {
	r.Get("/check", h.check)
	r.Get("/check-any", h.checkAny)
}

type decisionResponse struct {
	Allowed    bool `json:"allowed"`
	SuperAdmin bool `json:"superAdmin"`
}

// check answers hasAccess for the current principal. Unknown resource
// types or operations simply fail to match; the endpoint never errors on
// them.
func (h *AuthzHandler) check(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	rt := ResourceType(r.URL.Query().Get("resource"))
	op := r.URL.Query().Get("operation")
	id := r.URL.Query().Get("id")
	if id == "" {
		id = Wildcard
	}
	allowed := HasAccess(p, rt, op, id)
	if h.recorder != nil {
		h.recorder.RecordDecision(rt, allowed)
	}
	httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed, SuperAdmin: IsSuperAdmin(p)})
}

// checkAny answers hasAnyAccess for the current principal.
func (h *AuthzHandler) checkAny(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	rt := ResourceType(r.URL.Query().Get("resource"))
	op := r.URL.Query().Get("operation")
	allowed := HasAnyAccess(p, rt, op)
	if h.recorder != nil {
		h.recorder.RecordDecision(rt, allowed)
	}
	httpx.JSON(w, http.StatusOK, decisionResponse{Allowed: allowed, SuperAdmin: IsSuperAdmin(p)})
}
