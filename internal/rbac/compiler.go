package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

// PrincipalSource fetches the durable account record, never a cached
// session copy.
type PrincipalSource interface {
	PrincipalByID(ctx context.Context, id string) (*Principal, error)
}

// RoleSource fetches the permission map of a stored role.
type RoleSource interface {
	RolePermissions(ctx context.Context, roleID string) (PermissionMap, error)
}

// SessionStore is the slice of the session manager the compiler needs to
// rewrite live session records.
type SessionStore interface {
	SessionIDsForUser(ctx context.Context, userID string) ([]string, error)
	SessionRecord(ctx context.Context, sessionID string) (json.RawMessage, error)
	UpdateRecord(ctx context.Context, sessionID string, record json.RawMessage) error
}

// Compiler merges a principal's direct grants with the permission maps of
// its assigned roles into one effective permission map.
type Compiler struct {
	principals PrincipalSource
	roles      RoleSource
	sessions   SessionStore
	logger     *slog.Logger
}

// NewCompiler constructs a Compiler.
func NewCompiler(principals PrincipalSource, roles RoleSource, sessions SessionStore, logger *slog.Logger) *Compiler {
	return &Compiler{principals: principals, roles: roles, sessions: sessions, logger: logger}
}

// Compile returns the effective permission map for the principal. Fetch
// failures degrade to an empty map rather than propagating: a check against
// a map we could not build must deny, not crash.
func (c *Compiler) Compile(ctx context.Context, principalID string) PermissionMap {
	p, err := c.principals.PrincipalByID(ctx, principalID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && c.logger != nil {
			c.logger.Warn("compile: fetch principal", slog.String("user_id", principalID), slog.Any("error", err))
		}
		return PermissionMap{}
	}
	return c.accumulate(ctx, p)
}

// Snapshot returns the fresh principal with its effective permissions
// compiled in. The caller owns attaching a session expiry.
func (c *Compiler) Snapshot(ctx context.Context, principalID string) (*Principal, error) {
	p, err := c.principals.PrincipalByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	p.EffectivePermissions = c.accumulate(ctx, p)
	return p, nil
}

// Refresh recompiles the principal and rewrites the record in every one of
// its live sessions, preserving each session's own expiry. This is the
// designated recompute entry point invoked after every mutation that can
// change permissions.
func (c *Compiler) Refresh(ctx context.Context, principalID string) error {
	fresh, err := c.Snapshot(ctx, principalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Deleted principals keep their sessions until expiry.
			return nil
		}
		return err
	}
	ids, err := c.sessions.SessionIDsForUser(ctx, principalID)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, sessionID := range ids {
		g.Go(func() error {
			raw, err := c.sessions.SessionRecord(ctx, sessionID)
			if err != nil || len(raw) == 0 {
				return nil
			}
			var current Principal
			if err := json.Unmarshal(raw, &current); err != nil {
				return nil
			}
			updated := *fresh
			updated.Expiry = current.Expiry
			data, err := json.Marshal(&updated)
			if err != nil {
				return err
			}
			return c.sessions.UpdateRecord(ctx, sessionID, data)
		})
	}
	return g.Wait()
}

// accumulate starts from a deep copy of the direct grants and unions in
// each assigned role's map. Missing roles are skipped: role deletion does
// not cascade and a dangling id must not fail the compile. The result is
// order independent and always a superset of the direct grants.
func (c *Compiler) accumulate(ctx context.Context, p *Principal) PermissionMap {
	acc := p.AccessControl.Clone()
	for _, roleID := range p.Roles {
		perms, err := c.roles.RolePermissions(ctx, roleID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) && c.logger != nil {
				c.logger.Warn("compile: fetch role", slog.String("role_id", roleID), slog.Any("error", err))
			}
			continue
		}
		acc.Union(perms)
	}
	return acc
}
