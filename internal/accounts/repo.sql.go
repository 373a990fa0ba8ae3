package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

const accountColumns = `id, email, username, phone, password_hash, role, roles, access_control, created_at, updated_at, password_updated_at`

// Repository persists principal records in the admin_users table. It is
// the single authoritative store: login lookup runs as a query here rather
// than against a denormalized account list.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores a new account. Conflicting email, username, or phone maps
// to shared.ErrDuplicateAccount.
func (r *Repository) Insert(ctx context.Context, a Account) error {
	rolesJSON, err := json.Marshal(a.Roles)
	if err != nil {
		return err
	}
	aclJSON, err := json.Marshal(a.AccessControl)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO admin_users (id, email, username, phone, password_hash, role, roles, access_control, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Email, a.Username, a.Phone, a.PasswordHash, a.Role, rolesJSON, aclJSON, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return shared.ErrDuplicateAccount
	}
	return err
}

// GetByID fetches an account by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM admin_users WHERE id = $1`, id)
	return scanAccount(row)
}

// FindByIdentifier fetches the account whose email, username, or phone
// equals the identifier.
func (r *Repository) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM admin_users WHERE email = $1 OR username = $1 OR phone = $1`, identifier)
	return scanAccount(row)
}

// List returns all accounts ordered by creation time.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM admin_users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdatePassword replaces the stored hash.
func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admin_users SET password_hash = $2, password_updated_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateInfo updates email and/or username. Nil fields are left untouched.
func (r *Repository) UpdateInfo(ctx context.Context, id string, email, username *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admin_users SET email = COALESCE($2, email), username = COALESCE($3, username), updated_at = NOW() WHERE id = $1`,
		id, email, username)
	if isUniqueViolation(err) {
		return shared.ErrDuplicateAccount
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the account outright.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM admin_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PrincipalByID implements rbac.PrincipalSource.
func (r *Repository) PrincipalByID(ctx context.Context, id string) (*rbac.Principal, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Principal(), nil
}

// UpdateDirectGrants implements rbac.GrantStore. The row is locked for the
// duration of the read-modify-write so concurrent edits to the same
// principal serialize.
func (r *Repository) UpdateDirectGrants(ctx context.Context, userID string, mutate func(rbac.PermissionMap)) (rbac.PermissionMap, error) {
	var result rbac.PermissionMap
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT access_control FROM admin_users WHERE id = $1 FOR UPDATE`, userID).Scan(&raw)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		grants := rbac.PermissionMap{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &grants); err != nil {
				return err
			}
		}
		mutate(grants)
		grants.Compact()
		updated, err := json.Marshal(grants)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE admin_users SET access_control = $2, updated_at = NOW() WHERE id = $1`, userID, updated); err != nil {
			return err
		}
		result = grants
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UserRoles implements roles.AssignmentStore reads.
func (r *Repository) UserRoles(ctx context.Context, userID string) ([]string, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT roles FROM admin_users WHERE id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	var roleIDs []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &roleIDs); err != nil {
			return nil, err
		}
	}
	return roleIDs, nil
}

// SetUserRoles persists the role id list as-is.
func (r *Repository) SetUserRoles(ctx context.Context, userID string, roleIDs []string) error {
	if roleIDs == nil {
		roleIDs = []string{}
	}
	rolesJSON, err := json.Marshal(roleIDs)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE admin_users SET roles = $2, updated_at = NOW() WHERE id = $1`, userID, rolesJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UserIDsWithRole lists the ids of principals whose role list contains the
// role id.
func (r *Repository) UserIDsWithRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM admin_users WHERE roles @> jsonb_build_array($1::text)`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var rolesRaw, aclRaw []byte
	var passwordUpdatedAt *time.Time
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.Phone, &a.PasswordHash, &a.Role, &rolesRaw, &aclRaw, &a.CreatedAt, &a.UpdatedAt, &passwordUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if len(rolesRaw) > 0 {
		if err := json.Unmarshal(rolesRaw, &a.Roles); err != nil {
			return nil, err
		}
	}
	if len(aclRaw) > 0 {
		if err := json.Unmarshal(aclRaw, &a.AccessControl); err != nil {
			return nil, err
		}
	}
	if a.AccessControl == nil {
		a.AccessControl = rbac.PermissionMap{}
	}
	a.PasswordUpdatedAt = passwordUpdatedAt
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
