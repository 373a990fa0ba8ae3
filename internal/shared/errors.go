package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. It is deliberately
	// uniform: callers never learn whether the identifier or the password
	// was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateAccount indicates a conflicting email, username, or phone.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
