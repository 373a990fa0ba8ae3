package roles

import (
	"time"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
)

// Role is a named, reusable permission grouping. Principals reference
// roles by id; the reference is weak and deleting a role leaves dangling
// ids behind, which the permission compiler skips.
type Role struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Permissions rbac.PermissionMap `json:"permissions"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}
