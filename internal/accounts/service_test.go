package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

type mockAccountRepo struct {
	accounts map[string]Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: map[string]Account{}}
}

func (m *mockAccountRepo) Insert(ctx context.Context, a Account) error {
	for _, existing := range m.accounts {
		if existing.Email == a.Email || existing.Username == a.Username || existing.Phone == a.Phone {
			return shared.ErrDuplicateAccount
		}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m *mockAccountRepo) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAccountRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.PasswordHash = passwordHash
	m.accounts[id] = a
	return nil
}

func (m *mockAccountRepo) UpdateInfo(ctx context.Context, id string, email, username *string) error {
	a, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	if email != nil {
		a.Email = *email
	}
	if username != nil {
		a.Username = *username
	}
	m.accounts[id] = a
	return nil
}

func (m *mockAccountRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.accounts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func validInput() CreateInput {
	return CreateInput{
		Email:    "jordan@example.edu",
		Username: "jordan",
		Phone:    "+15550001111",
		Password: "hunter22",
	}
}

func TestCreateAccount(t *testing.T) {
	repo := newMockAccountRepo()
	svc := NewService(repo, nil, nil, nil)

	a, err := svc.Create(context.Background(), "admin", validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, rbac.RoleViewer, a.Role, "role defaults to viewer")
	assert.NotNil(t, a.Roles)
	assert.Empty(t, a.Roles)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("hunter22")))
	assert.NotEqual(t, "hunter22", a.PasswordHash)
}

func TestCreateAccountValidation(t *testing.T) {
	svc := NewService(newMockAccountRepo(), nil, nil, nil)
	ctx := context.Background()

	in := validInput()
	in.Email = "not-an-email"
	_, err := svc.Create(ctx, "admin", in)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	in = validInput()
	in.Username = "ab"
	_, err = svc.Create(ctx, "admin", in)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	in = validInput()
	in.Password = "short"
	_, err = svc.Create(ctx, "admin", in)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateAccountDuplicate(t *testing.T) {
	svc := NewService(newMockAccountRepo(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "admin", validInput())
	require.NoError(t, err)

	_, err = svc.Create(ctx, "admin", validInput())
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateAccountNormalizesIdentifiers(t *testing.T) {
	repo := newMockAccountRepo()
	svc := NewService(repo, nil, nil, nil)

	in := validInput()
	in.Email = "  jordan@example.edu  "
	a, err := svc.Create(context.Background(), "admin", in)
	require.NoError(t, err)
	assert.Equal(t, "jordan@example.edu", a.Email)
}

func TestUpdatePassword(t *testing.T) {
	repo := newMockAccountRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, "admin", validInput())
	require.NoError(t, err)

	require.NoError(t, svc.UpdatePassword(ctx, "admin", a.ID, "newsecret"))
	stored := repo.accounts[a.ID]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newsecret")))

	assert.ErrorIs(t, svc.UpdatePassword(ctx, "admin", a.ID, "short"), httpx.ErrValidation)
	assert.ErrorIs(t, svc.UpdatePassword(ctx, "admin", "user_ghost", "longenough"), httpx.ErrNotFound)
}

func TestUpdateInfo(t *testing.T) {
	repo := newMockAccountRepo()
	refresher := &stubRefresher{}
	svc := NewService(repo, nil, refresher, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, "admin", validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateInfo(ctx, "admin", a.ID, UpdateInfoInput{}), httpx.ErrValidation)

	email := "new@example.edu"
	require.NoError(t, svc.UpdateInfo(ctx, "admin", a.ID, UpdateInfoInput{Email: &email}))
	assert.Equal(t, email, repo.accounts[a.ID].Email)
	assert.Equal(t, []string{a.ID}, refresher.userIDs, "identity edits refresh live sessions")

	bad := "nope"
	assert.ErrorIs(t, svc.UpdateInfo(ctx, "admin", a.ID, UpdateInfoInput{Email: &bad}), httpx.ErrValidation)
}

func TestDeleteAccount(t *testing.T) {
	repo := newMockAccountRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, "admin", validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "admin", a.ID))
	assert.NotContains(t, repo.accounts, a.ID)
	assert.ErrorIs(t, svc.Delete(ctx, "admin", a.ID), httpx.ErrNotFound)
}

func TestSummary(t *testing.T) {
	repo := newMockAccountRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	in := validInput()
	in.Roles = []string{"role_a", "role_b"}
	in.AccessControl = rbac.PermissionMap{
		rbac.ResourceDatasets:     {"ds1": {rbac.OpRead}, "ds2": {rbac.OpRead}},
		rbac.ResourcePublications: {rbac.Wildcard: {rbac.OpCreate}},
	}
	a, err := svc.Create(ctx, "admin", in)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"role_a", "role_b"}, summary.Roles)
	assert.Equal(t, []string{"datasets", "publications"}, summary.ManualAccess)
	assert.Equal(t, 3, summary.TotalPermissions)
}

type stubRefresher struct {
	userIDs []string
}

func (s *stubRefresher) EnqueueSessionRefresh(ctx context.Context, userID string) error {
	s.userIDs = append(s.userIDs, userID)
	return nil
}
