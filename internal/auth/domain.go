package auth

import (
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
)

// Credentials pairs the stored password hash with the principal snapshot a
// successful login turns into a session record.
type Credentials struct {
	Principal    rbac.Principal
	PasswordHash string
}
