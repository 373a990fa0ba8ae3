package perf

import (
	"fmt"
	"testing"
	"time"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
)

// buildPrincipal returns a snapshot with grants spread over every resource
// type and n specific ids per type, approximating a heavily customized
// account.
func buildPrincipal(idsPerType int) *rbac.Principal {
	effective := rbac.PermissionMap{}
	for _, rt := range rbac.AllResourceTypes {
		effective.Grant(rt, rbac.Wildcard, []rbac.Operation{rbac.OpRead})
		for i := 0; i < idsPerType; i++ {
			effective.Grant(rt, fmt.Sprintf("res_%d", i), []rbac.Operation{rbac.OpUpdate})
		}
	}
	return &rbac.Principal{
		ID:                   "user_bench",
		Role:                 rbac.RoleEditor,
		EffectivePermissions: effective,
		Expiry:               time.Now().Add(time.Hour),
	}
}

func BenchmarkHasAccessWildcardHit(b *testing.B) {
	p := buildPrincipal(50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !rbac.HasAccess(p, rbac.ResourcePublications, "read", "res_25") {
			b.Fatal("expected allow")
		}
	}
}

func BenchmarkHasAccessSpecificIDHit(b *testing.B) {
	p := buildPrincipal(50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !rbac.HasAccess(p, rbac.ResourcePublications, "update", "res_25") {
			b.Fatal("expected allow")
		}
	}
}

func BenchmarkHasAccessMiss(b *testing.B) {
	p := buildPrincipal(50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if rbac.HasAccess(p, rbac.ResourcePublications, "delete", "res_25") {
			b.Fatal("expected deny")
		}
	}
}

func BenchmarkHasAnyAccess(b *testing.B) {
	p := buildPrincipal(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !rbac.HasAnyAccess(p, rbac.ResourceDatasets, "update") {
			b.Fatal("expected allow")
		}
	}
}
