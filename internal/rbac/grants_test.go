package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
)

type mockGrantStore struct {
	grants map[string]PermissionMap
	err    error
}

func newMockGrantStore() *mockGrantStore {
	return &mockGrantStore{grants: map[string]PermissionMap{}}
}

func (m *mockGrantStore) UpdateDirectGrants(ctx context.Context, userID string, mutate func(PermissionMap)) (PermissionMap, error) {
	if m.err != nil {
		return nil, m.err
	}
	current, ok := m.grants[userID]
	if !ok {
		current = PermissionMap{}
	}
	mutate(current)
	current.Compact()
	m.grants[userID] = current
	return current.Clone(), nil
}

type mockRefresher struct {
	userIDs []string
}

func (m *mockRefresher) EnqueueSessionRefresh(ctx context.Context, userID string) error {
	m.userIDs = append(m.userIDs, userID)
	return nil
}

func TestGrantIsIdempotent(t *testing.T) {
	store := newMockGrantStore()
	refresher := &mockRefresher{}
	g := NewGrantManager(store, nil, refresher, nil)
	ctx := context.Background()

	require.NoError(t, g.Grant(ctx, "admin", "user_1", ResourcePublications, []Operation{OpRead, OpUpdate}, []string{"pub1"}))
	require.NoError(t, g.Grant(ctx, "admin", "user_1", ResourcePublications, []Operation{OpRead, OpUpdate}, []string{"pub1"}))

	assert.ElementsMatch(t, []Operation{OpRead, OpUpdate}, store.grants["user_1"][ResourcePublications]["pub1"])
	assert.Equal(t, []string{"user_1", "user_1"}, refresher.userIDs, "every mutation schedules a refresh")
}

func TestGrantAppliesToEveryResourceID(t *testing.T) {
	store := newMockGrantStore()
	g := NewGrantManager(store, nil, nil, nil)

	require.NoError(t, g.Grant(context.Background(), "admin", "user_1", ResourceDatasets, []Operation{OpRead}, []string{"ds1", "ds2", Wildcard}))

	byID := store.grants["user_1"][ResourceDatasets]
	assert.Len(t, byID, 3)
	assert.Equal(t, []Operation{OpRead}, byID[Wildcard])
}

func TestRevokeRestoresPreGrantState(t *testing.T) {
	store := newMockGrantStore()
	g := NewGrantManager(store, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, g.Grant(ctx, "admin", "user_1", ResourceProjects, []Operation{OpRead}, []string{"p1"}))
	require.NoError(t, g.Revoke(ctx, "admin", "user_1", ResourceProjects, []Operation{OpRead}, []string{"p1"}))

	assert.Empty(t, store.grants["user_1"], "revoking the only grant prunes the whole entry")
}

func TestRevokeKeepsRemainingOperations(t *testing.T) {
	store := newMockGrantStore()
	g := NewGrantManager(store, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, g.Grant(ctx, "admin", "user_1", ResourceProjects, []Operation{OpRead, OpUpdate, OpDelete}, []string{"p1"}))
	require.NoError(t, g.Revoke(ctx, "admin", "user_1", ResourceProjects, []Operation{OpDelete}, []string{"p1"}))

	assert.ElementsMatch(t, []Operation{OpRead, OpUpdate}, store.grants["user_1"][ResourceProjects]["p1"])
}

func TestClearResourceAccessDropsEntireEntry(t *testing.T) {
	store := newMockGrantStore()
	g := NewGrantManager(store, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, g.Grant(ctx, "admin", "user_1", ResourceVacancies, []Operation{OpCreate, OpRead, OpUpdate, OpDelete}, []string{"v1", "v2"}))
	require.NoError(t, g.ClearResourceAccess(ctx, "admin", "user_1", ResourceVacancies, "v1"))

	byID := store.grants["user_1"][ResourceVacancies]
	assert.NotContains(t, byID, "v1")
	assert.Contains(t, byID, "v2")
}

func TestGrantValidation(t *testing.T) {
	g := NewGrantManager(newMockGrantStore(), nil, nil, nil)
	ctx := context.Background()

	err := g.Grant(ctx, "admin", "user_1", ResourceType("spaceships"), []Operation{OpRead}, []string{"x"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	err = g.Grant(ctx, "admin", "user_1", ResourceProjects, nil, []string{"x"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	err = g.Grant(ctx, "admin", "user_1", ResourceProjects, []Operation{Operation("X")}, []string{"x"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	err = g.Grant(ctx, "admin", "user_1", ResourceProjects, []Operation{OpRead}, nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	err = g.Grant(ctx, "admin", "user_1", ResourceProjects, []Operation{OpRead}, []string{""})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
