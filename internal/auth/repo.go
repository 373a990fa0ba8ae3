package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Credentials, error)
	CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByIdentifier fetches credentials for the account whose email,
// username, or phone equals the identifier.
func (r *PGRepository) FindByIdentifier(ctx context.Context, identifier string) (*Credentials, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, username, phone, password_hash, role, roles, access_control
		 FROM admin_users WHERE email = $1 OR username = $1 OR phone = $1`, identifier)
	var creds Credentials
	var rolesRaw, aclRaw []byte
	err := row.Scan(&creds.Principal.ID, &creds.Principal.Email, &creds.Principal.Username,
		&creds.Principal.Phone, &creds.PasswordHash, &creds.Principal.Role, &rolesRaw, &aclRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if len(rolesRaw) > 0 {
		if err := json.Unmarshal(rolesRaw, &creds.Principal.Roles); err != nil {
			return nil, err
		}
	}
	if len(aclRaw) > 0 {
		if err := json.Unmarshal(aclRaw, &creds.Principal.AccessControl); err != nil {
			return nil, err
		}
	}
	if creds.Principal.AccessControl == nil {
		creds.Principal.AccessControl = rbac.PermissionMap{}
	}
	return &creds, nil
}

// CreateSession persists a login session row for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID string, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at, ip, ua) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, userID,
		pgtype.Timestamptz{Time: now, Valid: true},
		pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
		pgtype.Text{String: ip, Valid: ip != ""},
		pgtype.Text{String: ua, Valid: ua != ""})
	return err
}

// DeleteSession removes a session row.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
