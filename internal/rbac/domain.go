package rbac

import (
	"strings"
	"time"
)

// ResourceType is a closed category of manageable portal entities.
type ResourceType string

// Resource types managed by the portal.
const (
	ResourceResearchers     ResourceType = "researchers"
	ResourcePublications    ResourceType = "publications"
	ResourceProjects        ResourceType = "projects"
	ResourceTeachings       ResourceType = "teachings"
	ResourceActivities      ResourceType = "activities"
	ResourceResearches      ResourceType = "researches"
	ResourcePartners        ResourceType = "partners"
	ResourceDatasets        ResourceType = "datasets"
	ResourceVacancies       ResourceType = "vacancies"
	ResourceApplications    ResourceType = "applications"
	ResourceBasicInfo       ResourceType = "basicInfo"
	ResourceUsers           ResourceType = "users"
	ResourceFeaturedMembers ResourceType = "featuredMembers"
)

// AllResourceTypes lists every managed resource type.
var AllResourceTypes = []ResourceType{
	ResourceResearchers,
	ResourcePublications,
	ResourceProjects,
	ResourceTeachings,
	ResourceActivities,
	ResourceResearches,
	ResourcePartners,
	ResourceDatasets,
	ResourceVacancies,
	ResourceApplications,
	ResourceBasicInfo,
	ResourceUsers,
	ResourceFeaturedMembers,
}

// Valid reports whether t is one of the managed resource types.
func (t ResourceType) Valid() bool {
	for _, known := range AllResourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Operation is an atomic capability on a resource.
type Operation string

// Stored operation codes.
const (
	OpCreate Operation = "C"
	OpRead   Operation = "R"
	OpUpdate Operation = "U"
	OpDelete Operation = "D"
)

// AllOperations lists every operation code.
var AllOperations = []Operation{OpCreate, OpRead, OpUpdate, OpDelete}

// Valid reports whether op is a recognized operation code.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpRead, OpUpdate, OpDelete:
		return true
	}
	return false
}

// NormalizeOperation maps full words or single-letter codes, case
// insensitively, onto the stored operation codes. Unrecognized input is
// returned as-is; it will never match a stored grant, so lookups built from
// it fail closed.
func NormalizeOperation(raw string) Operation {
	switch strings.ToLower(raw) {
	case "create", "c":
		return OpCreate
	case "read", "r":
		return OpRead
	case "update", "u":
		return OpUpdate
	case "delete", "d":
		return OpDelete
	}
	return Operation(raw)
}

// Wildcard matches every resource of a type.
const Wildcard = "*"

// Predefined primary roles. An empty primary role is treated as superadmin
// for accounts that predate role assignment.
const (
	RoleSuperAdmin  = "superadmin"
	RoleEditor      = "editor"
	RoleViewer      = "viewer"
	RoleContributor = "contributor"
)

// PermissionMap maps resource type to resource id (or Wildcard) to the
// operations granted on it. Empty operation sets are pruned, never stored.
type PermissionMap map[ResourceType]map[string][]Operation

// Clone returns a deep copy of the map.
func (m PermissionMap) Clone() PermissionMap {
	out := make(PermissionMap, len(m))
	for rt, byID := range m {
		cloned := make(map[string][]Operation, len(byID))
		for id, ops := range byID {
			cloned[id] = append([]Operation(nil), ops...)
		}
		out[rt] = cloned
	}
	return out
}

// Grant unions ops into the entry for (rt, id), deduplicating.
func (m PermissionMap) Grant(rt ResourceType, id string, ops []Operation) {
	byID, ok := m[rt]
	if !ok {
		byID = make(map[string][]Operation)
		m[rt] = byID
	}
	existing := byID[id]
	for _, op := range ops {
		if !containsOp(existing, op) {
			existing = append(existing, op)
		}
	}
	byID[id] = existing
}

// Revoke removes ops from the entry for (rt, id). The id entry is pruned
// when its set becomes empty, and the resource type entry when no ids
// remain.
func (m PermissionMap) Revoke(rt ResourceType, id string, ops []Operation) {
	byID, ok := m[rt]
	if !ok {
		return
	}
	existing, ok := byID[id]
	if !ok {
		return
	}
	kept := existing[:0]
	for _, op := range existing {
		if !containsOp(ops, op) {
			kept = append(kept, op)
		}
	}
	if len(kept) == 0 {
		delete(byID, id)
	} else {
		byID[id] = kept
	}
	if len(byID) == 0 {
		delete(m, rt)
	}
}

// Clear drops the (rt, id) entry regardless of its operation set.
func (m PermissionMap) Clear(rt ResourceType, id string) {
	byID, ok := m[rt]
	if !ok {
		return
	}
	delete(byID, id)
	if len(byID) == 0 {
		delete(m, rt)
	}
}

// Union merges other into m. Role grants are strictly additive; there is no
// deny semantics, only accumulation.
func (m PermissionMap) Union(other PermissionMap) {
	for rt, byID := range other {
		for id, ops := range byID {
			m.Grant(rt, id, ops)
		}
	}
}

// Compact drops empty operation sets and empty resource type entries.
// Callers run it before persisting maps supplied by clients so empty sets
// are pruned, never stored.
func (m PermissionMap) Compact() {
	for rt, byID := range m {
		for id, ops := range byID {
			if len(ops) == 0 {
				delete(byID, id)
			}
		}
		if len(byID) == 0 {
			delete(m, rt)
		}
	}
}

func containsOp(ops []Operation, op Operation) bool {
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}

// Principal is the session snapshot of an authenticated account: identity
// fields, the raw direct grants, and the compiled effective permissions the
// evaluator consults.
type Principal struct {
	ID                   string        `json:"id"`
	Email                string        `json:"email"`
	Username             string        `json:"username"`
	Phone                string        `json:"phone"`
	Role                 string        `json:"role"`
	Roles                []string      `json:"roles"`
	AccessControl        PermissionMap `json:"accessControl"`
	EffectivePermissions PermissionMap `json:"effectivePermissions,omitempty"`
	Expiry               time.Time     `json:"expiry"`
}

// Expired reports whether the snapshot's login window has lapsed.
func (p *Principal) Expired(now time.Time) bool {
	return p == nil || now.After(p.Expiry)
}
