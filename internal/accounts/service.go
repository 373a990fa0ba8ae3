package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/httpx"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	Insert(ctx context.Context, a Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateInfo(ctx context.Context, id string, email, username *string) error
	Delete(ctx context.Context, id string) error
}

// Service handles principal management business rules.
type Service struct {
	repo     RepositoryPort
	audit    *shared.AuditLogger
	refresh  rbac.Refresher
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, refresh rbac.Refresher, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, refresh: refresh, logger: logger, validate: validator.New()}
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Email         string `validate:"required,email"`
	Username      string `validate:"required,min=3"`
	Phone         string `validate:"required"`
	Password      string `validate:"required,min=6"`
	Role          string
	Roles         []string
	AccessControl rbac.PermissionMap
}

// Create validates and stores a new account. Identifiers are NFC
// normalized so logins typed on different keyboards match the stored
// forms.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*Account, error) {
	in.Email = NormalizeIdentifier(in.Email)
	in.Username = NormalizeIdentifier(in.Username)
	in.Phone = NormalizeIdentifier(in.Phone)
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", httpx.ErrValidation, validationDetail(err))
	}
	if in.Role == "" {
		in.Role = rbac.RoleViewer
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if in.AccessControl == nil {
		in.AccessControl = rbac.PermissionMap{}
	}
	in.AccessControl.Compact()
	now := time.Now().UTC()
	account := Account{
		ID:            "user_" + uuid.NewString(),
		Email:         in.Email,
		Username:      in.Username,
		Phone:         in.Phone,
		PasswordHash:  string(hash),
		Role:          in.Role,
		Roles:         in.Roles,
		AccessControl: in.AccessControl,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if account.Roles == nil {
		account.Roles = []string{}
	}
	if err := s.repo.Insert(ctx, account); err != nil {
		if errors.Is(err, shared.ErrDuplicateAccount) {
			return nil, fmt.Errorf("%w: email, username, or phone already in use", httpx.ErrDuplicate)
		}
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.create", account.ID, map[string]any{"email": account.Email})
	return &account, nil
}

// Get fetches a single account.
func (s *Service) Get(ctx context.Context, id string) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", httpx.ErrNotFound, id)
		}
		return nil, err
	}
	return a, nil
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// UpdatePassword re-hashes and stores a new password.
func (s *Service) UpdatePassword(ctx context.Context, actorID, userID, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
		}
		return err
	}
	s.recordAudit(ctx, actorID, "user.update_password", userID, nil)
	return nil
}

// UpdateInfoInput carries optional identity edits.
type UpdateInfoInput struct {
	Email    *string
	Username *string
}

// UpdateInfo edits email and/or username. At least one field must be
// provided. Live sessions of the edited principal are refreshed so their
// snapshots pick up the new identity.
func (s *Service) UpdateInfo(ctx context.Context, actorID, userID string, in UpdateInfoInput) error {
	if in.Email == nil && in.Username == nil {
		return fmt.Errorf("%w: at least one of email or username must be provided", httpx.ErrValidation)
	}
	if in.Email != nil {
		normalized := NormalizeIdentifier(*in.Email)
		if err := s.validate.Var(normalized, "required,email"); err != nil {
			return fmt.Errorf("%w: invalid email format", httpx.ErrValidation)
		}
		in.Email = &normalized
	}
	if in.Username != nil {
		normalized := NormalizeIdentifier(*in.Username)
		if len(normalized) < 3 {
			return fmt.Errorf("%w: username must be at least 3 characters", httpx.ErrValidation)
		}
		in.Username = &normalized
	}
	if err := s.repo.UpdateInfo(ctx, userID, in.Email, in.Username); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
		}
		if errors.Is(err, shared.ErrDuplicateAccount) {
			return fmt.Errorf("%w: email or username already in use", httpx.ErrDuplicate)
		}
		return err
	}
	s.recordAudit(ctx, actorID, "user.update_info", userID, nil)
	if s.refresh != nil {
		if err := s.refresh.EnqueueSessionRefresh(ctx, userID); err != nil && s.logger != nil {
			s.logger.Warn("enqueue session refresh", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	return nil
}

// Delete removes an account. Live sessions lapse at their expiry; other
// records referencing the id keep dangling references.
func (s *Service) Delete(ctx context.Context, actorID, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: user %s", httpx.ErrNotFound, userID)
		}
		return err
	}
	s.recordAudit(ctx, actorID, "user.delete", userID, nil)
	return nil
}

// Summary builds the display summary of a principal's authorization state.
func (s *Service) Summary(ctx context.Context, userID string) (*PermissionsSummary, error) {
	a, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := &PermissionsSummary{Roles: a.Roles, ManualAccess: []string{}}
	for rt, byID := range a.AccessControl {
		summary.ManualAccess = append(summary.ManualAccess, string(rt))
		summary.TotalPermissions += len(byID)
	}
	sort.Strings(summary.ManualAccess)
	return summary, nil
}

// NormalizeIdentifier trims and NFC-normalizes a login identifier.
func NormalizeIdentifier(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: entityID, Meta: meta}); err != nil && s.logger != nil {
		s.logger.Warn("audit account mutation", slog.Any("error", err))
	}
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s is invalid (%s)", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
