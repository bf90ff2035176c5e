package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// UserService backs the admin account-management surface.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService builds the service.
func NewUserService(cfg config.Config, users repository.UserRepository) *UserService {
	return &UserService{
		users:      users,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// ProvisionUser creates an officer or admin account. Citizen accounts come
// from self-registration, never from here.
func (s *UserService) ProvisionUser(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	if role != domain.RoleOfficer && role != domain.RoleAdmin {
		return nil, apperrors.NewValidationError("role must be OFFICER or ADMIN", map[string]any{"role": role})
	}
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if len(password) < 8 {
		return nil, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// ListUsers pages through every account.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// ListOfficers returns active officers, used to populate assignment choices.
func (s *UserService) ListOfficers(ctx context.Context) ([]domain.User, error) {
	officers, err := s.users.ListByRole(ctx, domain.RoleOfficer)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return officers, nil
}

// SetActive toggles an account. Deactivated accounts cannot log in and are
// rejected as assignment targets.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	user.Active = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}
