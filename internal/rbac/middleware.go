package rbac

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
)

// DecisionRecorder counts authorization decisions for metrics.
type DecisionRecorder interface {
	RecordDecision(rt ResourceType, allowed bool)
}

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// RequireSession rejects requests without a live session record. Expired
// records are treated as absent and the caller must log in again.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil || p.Expired(time.Now()) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAccess ensures the current principal holds op on the wildcard or
// any evaluated entry for rt before the handler runs.
func (m Middleware) RequireAccess(rt ResourceType, op Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil || p.Expired(time.Now()) {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			allowed := HasAccess(p, rt, string(op), Wildcard)
			m.record(rt, allowed)
			if !allowed {
				if m.Logger != nil {
					m.Logger.Info("access denied", slog.String("user_id", p.ID), slog.String("resource", string(rt)), slog.String("operation", string(op)))
				}
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyAccess is the existential variant: the principal needs op on
// any resource of the type, not necessarily the wildcard.
func (m Middleware) RequireAnyAccess(rt ResourceType, op Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil || p.Expired(time.Now()) {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			allowed := HasAnyAccess(p, rt, string(op))
			m.record(rt, allowed)
			if !allowed {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) record(rt ResourceType, allowed bool) {
	if m.Recorder != nil {
		m.Recorder.RecordDecision(rt, allowed)
	}
}
