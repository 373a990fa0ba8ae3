package roles

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

// Repository persists roles in PostgreSQL. Permission maps live in a JSONB
// column.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new role.
func (r *Repository) Insert(ctx context.Context, role Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO roles (id, name, description, permissions, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		role.ID, role.Name, role.Description, perms, role.CreatedAt, role.UpdatedAt)
	return err
}

// Get fetches a role by id.
func (r *Repository) Get(ctx context.Context, id string) (Role, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, permissions, created_at, updated_at FROM roles WHERE id = $1`, id)
	return scanRole(row)
}

// List returns all roles ordered by name.
func (r *Repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, permissions, created_at, updated_at FROM roles ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// UpdatePermissions replaces a role's permission map outright.
func (r *Repository) UpdatePermissions(ctx context.Context, id string, permissions rbac.PermissionMap) error {
	perms, err := json.Marshal(permissions)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET permissions = $2, updated_at = NOW() WHERE id = $1`, id, perms)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete hard-deletes a role. Principals listing the id keep a dangling
// reference.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RolePermissions implements rbac.RoleSource for the permission compiler.
func (r *Repository) RolePermissions(ctx context.Context, roleID string) (rbac.PermissionMap, error) {
	role, err := r.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return role.Permissions, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	var perms []byte
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &perms, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &role.Permissions); err != nil {
			return Role{}, err
		}
	}
	if role.Permissions == nil {
		role.Permissions = rbac.PermissionMap{}
	}
	return role, nil
}
