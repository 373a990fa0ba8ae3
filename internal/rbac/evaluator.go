package rbac

// The evaluator answers authorization queries from the session snapshot
// alone. It performs no I/O and never errors: absent data is a denial.

// IsSuperAdmin reports whether p bypasses every check. An explicit
// superadmin primary role qualifies, and so does an unset one, which keeps
// accounts created before role assignment fully usable.
func IsSuperAdmin(p *Principal) bool {
	if p == nil {
		return false
	}
	return p.Role == RoleSuperAdmin || p.Role == ""
}

// HasAccess reports whether p may perform op on the given resource.
// resourceID may be a concrete id or Wildcard. Holding Update or Delete
// implies Read at query time; the implication is never stored.
func HasAccess(p *Principal, rt ResourceType, op string, resourceID string) bool {
	if p == nil {
		return false
	}
	if IsSuperAdmin(p) {
		return true
	}
	checkOps := checkSet(op)
	byID, ok := resourceEntries(p, rt)
	if !ok {
		return false
	}
	if intersects(byID[Wildcard], checkOps) {
		return true
	}
	if resourceID != Wildcard && intersects(byID[resourceID], checkOps) {
		return true
	}
	return false
}

// HasAnyAccess reports whether p may perform op on any resource of the
// given type. Collaborators use it to decide whether a whole section is
// reachable at all.
func HasAnyAccess(p *Principal, rt ResourceType, op string) bool {
	if p == nil {
		return false
	}
	if IsSuperAdmin(p) {
		return true
	}
	checkOps := checkSet(op)
	byID, ok := resourceEntries(p, rt)
	if !ok {
		return false
	}
	for _, ops := range byID {
		if intersects(ops, checkOps) {
			return true
		}
	}
	return false
}

// resourceEntries picks the map the evaluator consults for rt: the compiled
// effective permissions when they carry the type, otherwise the raw direct
// grants. The fallback keeps checks working for sessions that were never
// compiled, at the cost of missing role-derived grants until a compile runs.
func resourceEntries(p *Principal, rt ResourceType) (map[string][]Operation, bool) {
	if byID, ok := p.EffectivePermissions[rt]; ok {
		return byID, true
	}
	if byID, ok := p.AccessControl[rt]; ok {
		return byID, true
	}
	return nil, false
}

// checkSet expands op into the set of stored codes that satisfy it.
func checkSet(op string) []Operation {
	normalized := NormalizeOperation(op)
	if normalized == OpRead {
		return []Operation{OpRead, OpUpdate, OpDelete}
	}
	return []Operation{normalized}
}

func intersects(ops []Operation, check []Operation) bool {
	for _, op := range ops {
		if containsOp(check, op) {
			return true
		}
	}
	return false
}
