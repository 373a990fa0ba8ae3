package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/auth"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
	_ "github.com/Brainless-Loco/bike-portfolio-admin/testing"
)

type stubRepo struct {
	creds *auth.Credentials
}

func (s *stubRepo) FindByIdentifier(ctx context.Context, identifier string) (*auth.Credentials, error) {
	if s.creds == nil {
		return nil, shared.ErrNotFound
	}
	return s.creds, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type stubPrincipalSource struct {
	principal *rbac.Principal
}

func (s *stubPrincipalSource) PrincipalByID(ctx context.Context, id string) (*rbac.Principal, error) {
	if s.principal == nil {
		return nil, shared.ErrNotFound
	}
	clone := *s.principal
	return &clone, nil
}

type stubRoleSource struct {
	roles map[string]rbac.PermissionMap
}

func (s *stubRoleSource) RolePermissions(ctx context.Context, roleID string) (rbac.PermissionMap, error) {
	perms, ok := s.roles[roleID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return perms.Clone(), nil
}

func newTestHandler(t *testing.T, repo auth.Repository, principals rbac.PrincipalSource, roles rbac.RoleSource) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", 7*24*time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	compiler := rbac.NewCompiler(principals, roles, sessionManager, logger)
	handler := auth.NewHandler(logger, auth.NewService(repo), compiler, sessionManager, shared.NewCSRFManager("csrfsecret"))
	return handler, sessionManager
}

func doLogin(t *testing.T, handler *auth.Handler, sm *shared.SessionManager, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)
	router.ServeHTTP(res, req)
	require.NoError(t, sm.Commit(req.Context(), res, req, sess))
	return res
}

func seedStub(t *testing.T, password string) (*stubRepo, *stubPrincipalSource) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	principal := rbac.Principal{
		ID:            "user_1",
		Email:         "jordan@example.edu",
		Username:      "jordan",
		Phone:         "+15550001111",
		Role:          rbac.RoleEditor,
		Roles:         []string{"role_a"},
		AccessControl: rbac.PermissionMap{},
	}
	repo := &stubRepo{creds: &auth.Credentials{Principal: principal, PasswordHash: string(hash)}}
	return repo, &stubPrincipalSource{principal: &principal}
}

func TestLoginSuccess(t *testing.T) {
	repo, principals := seedStub(t, "hunter22")
	rolePerms := rbac.PermissionMap{}
	rolePerms.Grant(rbac.ResourcePublications, rbac.Wildcard, []rbac.Operation{rbac.OpRead})
	handler, sm := newTestHandler(t, repo, principals, &stubRoleSource{roles: map[string]rbac.PermissionMap{"role_a": rolePerms}})

	res := doLogin(t, handler, sm, `{"identifier":"jordan","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var got rbac.Principal
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	assert.Equal(t, "user_1", got.ID)
	assert.Equal(t, []rbac.Operation{rbac.OpRead}, got.EffectivePermissions[rbac.ResourcePublications][rbac.Wildcard])

	wantExpiry := time.Now().Add(7 * 24 * time.Hour)
	assert.WithinDuration(t, wantExpiry, got.Expiry, time.Minute)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies, "login must issue a session cookie")
}

func TestLoginWrongPassword(t *testing.T) {
	repo, principals := seedStub(t, "hunter22")
	handler, sm := newTestHandler(t, repo, principals, &stubRoleSource{})

	res := doLogin(t, handler, sm, `{"identifier":"jordan","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginUnknownIdentifier(t *testing.T) {
	handler, sm := newTestHandler(t, &stubRepo{}, &stubPrincipalSource{}, &stubRoleSource{})

	res := doLogin(t, handler, sm, `{"identifier":"nobody","password":"hunter22"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginMissingFields(t *testing.T) {
	handler, sm := newTestHandler(t, &stubRepo{}, &stubPrincipalSource{}, &stubRoleSource{})

	res := doLogin(t, handler, sm, `{"identifier":"jordan"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
