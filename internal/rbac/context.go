package rbac

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal snapshot in
// context. The session middleware sets it once per request.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal snapshot, nil when the
// request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
