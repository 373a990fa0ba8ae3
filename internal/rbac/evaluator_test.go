package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func principalWithEffective(effective PermissionMap) *Principal {
	return &Principal{
		ID:                   "user_1",
		Role:                 RoleEditor,
		AccessControl:        PermissionMap{},
		EffectivePermissions: effective,
		Expiry:               time.Now().Add(time.Hour),
	}
}

func TestIsSuperAdmin(t *testing.T) {
	assert.False(t, IsSuperAdmin(nil))
	assert.True(t, IsSuperAdmin(&Principal{Role: RoleSuperAdmin}))
	assert.True(t, IsSuperAdmin(&Principal{Role: ""}), "unset primary role bypasses checks")
	assert.False(t, IsSuperAdmin(&Principal{Role: RoleViewer}))
}

func TestHasAccessSuperAdminBypassesEverything(t *testing.T) {
	p := &Principal{Role: RoleSuperAdmin}
	for _, rt := range AllResourceTypes {
		assert.True(t, HasAccess(p, rt, "delete", Wildcard))
	}
	assert.True(t, HasAccess(p, ResourceUsers, "nonsense-op", "id-9"))
}

func TestHasAccessNilPrincipalDenied(t *testing.T) {
	assert.False(t, HasAccess(nil, ResourceUsers, "read", Wildcard))
	assert.False(t, HasAnyAccess(nil, ResourceUsers, "read"))
}

func TestHasAccessReadImpliedByUpdateAndDelete(t *testing.T) {
	p := principalWithEffective(PermissionMap{
		ResourcePublications: {"pub1": {OpUpdate}},
		ResourceDatasets:     {"ds1": {OpDelete}},
	})

	assert.True(t, HasAccess(p, ResourcePublications, "read", "pub1"), "update implies read")
	assert.True(t, HasAccess(p, ResourceDatasets, "read", "ds1"), "delete implies read")

	// The implication runs one way only.
	assert.False(t, HasAccess(p, ResourcePublications, "delete", "pub1"))
	assert.False(t, HasAccess(p, ResourceDatasets, "update", "ds1"))
}

func TestHasAccessWildcardAndSpecificCoexist(t *testing.T) {
	p := principalWithEffective(PermissionMap{
		ResourceProjects: {
			Wildcard: {OpRead},
			"p7":     {OpUpdate},
		},
	})

	assert.True(t, HasAccess(p, ResourceProjects, "read", "p7"), "wildcard read covers any id")
	assert.True(t, HasAccess(p, ResourceProjects, "read", "other"))
	assert.True(t, HasAccess(p, ResourceProjects, "update", "p7"))
	assert.False(t, HasAccess(p, ResourceProjects, "update", "other"), "wildcard grant does not widen")
}

func TestHasAccessWildcardQueryMatchesOnlyWildcardEntry(t *testing.T) {
	p := principalWithEffective(PermissionMap{
		ResourceActivities: {"a1": {OpRead}},
	})

	assert.False(t, HasAccess(p, ResourceActivities, "read", Wildcard),
		"asking for the wildcard must not match a specific-id grant")
	assert.True(t, HasAccess(p, ResourceActivities, "read", "a1"))
}

func TestHasAccessUnknownOperationFailsClosed(t *testing.T) {
	p := principalWithEffective(PermissionMap{
		ResourcePublications: {Wildcard: {OpCreate, OpRead, OpUpdate, OpDelete}},
	})
	assert.False(t, HasAccess(p, ResourcePublications, "execute", Wildcard))
}

func TestLegacyAccountWithoutRolesHasFullAccess(t *testing.T) {
	// Accounts created before role assignment carry neither a primary
	// role nor a role list; they behave as superadmins.
	p := &Principal{
		ID:            "user_legacy",
		AccessControl: PermissionMap{},
		Expiry:        time.Now().Add(time.Hour),
	}
	assert.True(t, IsSuperAdmin(p))
	assert.True(t, HasAccess(p, ResourceUsers, "delete", Wildcard))
}

func TestViewerWildcardReadDoesNotGrantUpdate(t *testing.T) {
	p := &Principal{
		Role: RoleViewer,
		AccessControl: PermissionMap{
			ResourceResearchers: {Wildcard: {OpRead}},
		},
		Expiry: time.Now().Add(time.Hour),
	}
	assert.False(t, HasAccess(p, ResourceResearchers, "update", "r1"))
	assert.True(t, HasAccess(p, ResourceResearchers, "read", "r1"))
}

func TestHasAccessFallsBackToDirectGrants(t *testing.T) {
	// A session compiled before any effective permissions were stored
	// still answers from the raw direct grants.
	p := &Principal{
		Role: RoleEditor,
		AccessControl: PermissionMap{
			ResourcePartners: {"pt1": {OpRead}},
		},
		Expiry: time.Now().Add(time.Hour),
	}
	assert.True(t, HasAccess(p, ResourcePartners, "read", "pt1"))
	assert.False(t, HasAccess(p, ResourcePartners, "update", "pt1"))
}

func TestHasAccessEffectiveEntryShadowsDirectGrants(t *testing.T) {
	// Once the compiled map carries the resource type, the raw direct
	// grants are not consulted for it.
	p := &Principal{
		Role: RoleEditor,
		AccessControl: PermissionMap{
			ResourceDatasets: {"ds1": {OpDelete}},
		},
		EffectivePermissions: PermissionMap{
			ResourceDatasets: {"ds1": {OpRead}},
		},
		Expiry: time.Now().Add(time.Hour),
	}
	assert.False(t, HasAccess(p, ResourceDatasets, "delete", "ds1"))
	assert.True(t, HasAccess(p, ResourceDatasets, "read", "ds1"))
}

func TestHasAnyAccess(t *testing.T) {
	p := principalWithEffective(PermissionMap{
		ResourceVacancies: {"v1": {OpUpdate}},
	})

	assert.True(t, HasAnyAccess(p, ResourceVacancies, "update"))
	assert.True(t, HasAnyAccess(p, ResourceVacancies, "read"), "update implies read here too")
	assert.False(t, HasAnyAccess(p, ResourceVacancies, "delete"))
	assert.False(t, HasAnyAccess(p, ResourceApplications, "read"))
}

func TestPrincipalExpired(t *testing.T) {
	now := time.Now()
	var nilPrincipal *Principal
	assert.True(t, nilPrincipal.Expired(now))
	assert.True(t, (&Principal{Expiry: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&Principal{Expiry: now.Add(time.Second)}).Expired(now))
}
