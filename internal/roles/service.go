package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	Insert(ctx context.Context, role Role) error
	Get(ctx context.Context, id string) (Role, error)
	List(ctx context.Context) ([]Role, error)
	UpdatePermissions(ctx context.Context, id string, permissions rbac.PermissionMap) error
	Delete(ctx context.Context, id string) error
}

// AssignmentStore reads and writes the role list on principal records.
type AssignmentStore interface {
	UserRoles(ctx context.Context, userID string) ([]string, error)
	SetUserRoles(ctx context.Context, userID string, roleIDs []string) error
	UserIDsWithRole(ctx context.Context, roleID string) ([]string, error)
}

// Service orchestrates role registry operations.
type Service struct {
	repo        RepositoryPort
	assignments AssignmentStore
	audit       *shared.AuditLogger
	refresh     rbac.Refresher
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, assignments AssignmentStore, audit *shared.AuditLogger, refresh rbac.Refresher, logger *slog.Logger) *Service {
	return &Service{repo: repo, assignments: assignments, audit: audit, refresh: refresh, logger: logger}
}

// Create inserts a new role with a fresh id and timestamps. Name
// collisions are not checked; the registry is keyed by id and the UI
// disambiguates.
func (s *Service) Create(ctx context.Context, actorID, name, description string, permissions rbac.PermissionMap) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", httpx.ErrValidation)
	}
	if permissions == nil {
		permissions = rbac.PermissionMap{}
	}
	permissions.Compact()
	now := time.Now().UTC()
	role := Role{
		ID:          "role_" + uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: permissions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, role); err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "role.create", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// Get fetches a role by id.
func (s *Service) Get(ctx context.Context, id string) (Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Role{}, fmt.Errorf("%w: role %s", httpx.ErrNotFound, id)
		}
		return Role{}, err
	}
	return role, nil
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// UpdatePermissions replaces a role's permission map, then schedules a
// session refresh for every principal holding the role.
func (s *Service) UpdatePermissions(ctx context.Context, actorID, roleID string, permissions rbac.PermissionMap) error {
	if permissions == nil {
		permissions = rbac.PermissionMap{}
	}
	permissions.Compact()
	if err := s.repo.UpdatePermissions(ctx, roleID, permissions); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: role %s", httpx.ErrNotFound, roleID)
		}
		return err
	}
	s.recordAudit(ctx, actorID, "role.update_permissions", roleID, nil)
	s.refreshHolders(ctx, roleID)
	return nil
}

// Delete hard-deletes a role. Principals still listing the id keep a
// dangling reference, silently skipped by the compiler; their sessions are
// refreshed so the role's grants stop applying.
func (s *Service) Delete(ctx context.Context, actorID, roleID string) error {
	holders, holdersErr := s.assignments.UserIDsWithRole(ctx, roleID)
	if err := s.repo.Delete(ctx, roleID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: role %s", httpx.ErrNotFound, roleID)
		}
		return err
	}
	s.recordAudit(ctx, actorID, "role.delete", roleID, nil)
	if holdersErr == nil {
		for _, userID := range holders {
			s.scheduleRefresh(ctx, userID)
		}
	}
	return nil
}

// AssignUserRoles replaces a principal's role list. Every id is validated
// against the registry first and the whole call fails on any missing id;
// there is no partial write.
func (s *Service) AssignUserRoles(ctx context.Context, actorID, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		if _, err := s.repo.Get(ctx, roleID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: role %q does not exist", httpx.ErrValidation, roleID)
			}
			return err
		}
	}
	if err := s.assignments.SetUserRoles(ctx, userID, roleIDs); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
		}
		return err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: "role.assign", Entity: "user", EntityID: userID, Meta: map[string]any{"roles": roleIDs}}); err != nil && s.logger != nil {
			s.logger.Warn("audit role assignment", slog.Any("error", err))
		}
	}
	s.scheduleRefresh(ctx, userID)
	return nil
}

// RemoveUserRole drops one role id from a principal's list.
func (s *Service) RemoveUserRole(ctx context.Context, actorID, userID, roleID string) error {
	current, err := s.assignments.UserRoles(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
		}
		return err
	}
	kept := make([]string, 0, len(current))
	for _, id := range current {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	return s.AssignUserRoles(ctx, actorID, userID, kept)
}

// CheckRoleAccess answers whether a role's own map grants op on the
// resource, without any principal involved. Read implication does not
// apply here; the check is against the stored set as-is.
func (s *Service) CheckRoleAccess(ctx context.Context, roleID string, rt rbac.ResourceType, op string, resourceID string) (bool, error) {
	role, err := s.repo.Get(ctx, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	byID, ok := role.Permissions[rt]
	if !ok {
		return false, nil
	}
	normalized := rbac.NormalizeOperation(op)
	if hasOp(byID[rbac.Wildcard], normalized) {
		return true, nil
	}
	if resourceID != rbac.Wildcard && hasOp(byID[resourceID], normalized) {
		return true, nil
	}
	return false, nil
}

func hasOp(ops []rbac.Operation, op rbac.Operation) bool {
	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}
	return false
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "role", EntityID: entityID, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit role mutation", slog.Any("error", err))
	}
}

func (s *Service) refreshHolders(ctx context.Context, roleID string) {
	holders, err := s.assignments.UserIDsWithRole(ctx, roleID)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("list role holders", slog.String("role_id", roleID), slog.Any("error", err))
		}
		return
	}
	for _, userID := range holders {
		s.scheduleRefresh(ctx, userID)
	}
}

func (s *Service) scheduleRefresh(ctx context.Context, userID string) {
	if s.refresh == nil {
		return
	}
	if err := s.refresh.EnqueueSessionRefresh(ctx, userID); err != nil && s.logger != nil {
		s.logger.Warn("enqueue session refresh", slog.String("user_id", userID), slog.Any("error", err))
	}
}
