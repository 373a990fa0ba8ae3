package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRecorder struct {
	allowed int
	denied  int
}

func (c *countingRecorder) RecordDecision(rt ResourceType, allowed bool) {
	if allowed {
		c.allowed++
	} else {
		c.denied++
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithPrincipal(p *Principal) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(ContextWithPrincipal(req.Context(), p))
	}
	return req
}

func TestRequireSession(t *testing.T) {
	m := Middleware{}
	handler := m.RequireSession(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(&Principal{ID: "u1", Role: RoleViewer, Expiry: time.Now().Add(-time.Minute)}))
	assert.Equal(t, http.StatusUnauthorized, res.Code, "expired snapshots are treated as absent")

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(&Principal{ID: "u1", Role: RoleViewer, Expiry: time.Now().Add(time.Hour)}))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAccess(t *testing.T) {
	recorder := &countingRecorder{}
	m := Middleware{Recorder: recorder}
	handler := m.RequireAccess(ResourceUsers, OpRead)(okHandler())

	effective := PermissionMap{}
	effective.Grant(ResourceUsers, Wildcard, []Operation{OpRead})
	granted := &Principal{ID: "u1", Role: RoleEditor, EffectivePermissions: effective, Expiry: time.Now().Add(time.Hour)}
	denied := &Principal{ID: "u2", Role: RoleEditor, EffectivePermissions: PermissionMap{}, AccessControl: PermissionMap{}, Expiry: time.Now().Add(time.Hour)}

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(granted))
	assert.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(denied))
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	assert.Equal(t, 1, recorder.allowed)
	assert.Equal(t, 1, recorder.denied, "missing sessions do not count as decisions")
}

func TestRequireAccessSuperAdmin(t *testing.T) {
	m := Middleware{}
	handler := m.RequireAccess(ResourceUsers, OpDelete)(okHandler())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(&Principal{ID: "root", Role: RoleSuperAdmin, Expiry: time.Now().Add(time.Hour)}))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyAccess(t *testing.T) {
	m := Middleware{}
	handler := m.RequireAnyAccess(ResourceDatasets, OpRead)(okHandler())

	effective := PermissionMap{}
	effective.Grant(ResourceDatasets, "ds1", []Operation{OpUpdate})
	p := &Principal{ID: "u1", Role: RoleEditor, EffectivePermissions: effective, Expiry: time.Now().Add(time.Hour)}

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestWithPrincipal(p))
	assert.Equal(t, http.StatusOK, res.Code, "a single-resource grant opens the section")
}
