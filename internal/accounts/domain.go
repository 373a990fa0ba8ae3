package accounts

import (
	"time"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
)

// Account is the durable principal record. Passwords are stored as bcrypt
// hashes only.
type Account struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	Username          string             `json:"username"`
	Phone             string             `json:"phone"`
	PasswordHash      string             `json:"-"`
	Role              string             `json:"role"`
	Roles             []string           `json:"roles"`
	AccessControl     rbac.PermissionMap `json:"accessControl"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	PasswordUpdatedAt *time.Time         `json:"passwordUpdatedAt,omitempty"`
}

// Principal converts the record into the session snapshot shape. Effective
// permissions and expiry are attached later, by the compiler and the login
// flow respectively.
func (a *Account) Principal() *rbac.Principal {
	return &rbac.Principal{
		ID:            a.ID,
		Email:         a.Email,
		Username:      a.Username,
		Phone:         a.Phone,
		Role:          a.Role,
		Roles:         append([]string(nil), a.Roles...),
		AccessControl: a.AccessControl.Clone(),
	}
}

// PermissionsSummary is the display shape of a principal's authorization
// state used by the management UI.
type PermissionsSummary struct {
	Roles            []string `json:"roles"`
	ManualAccess     []string `json:"manualAccess"`
	TotalPermissions int      `json:"totalPermissions"`
}
