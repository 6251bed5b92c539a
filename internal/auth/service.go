package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/assoc-site/backend/internal/models"
	"github.com/assoc-site/backend/pkg/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotHashed          = errors.New("password must be a bcrypt hash")
)

// UserStore is the account storage used by Service.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.UserPublic, error)
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, bool, error)
}

// Service authenticates dashboard users and provisions member accounts.
type Service struct {
	users  UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewService creates an auth service.
func NewService(users UserStore, jwt *JWTService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, jwt: jwt, logger: logger}
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if !utils.CheckPassword(password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, user, nil
}

// Provision creates a member account from an already hashed password.
// Existing accounts are reused; created reports whether a new one was made.
func (s *Service) Provision(ctx context.Context, email, passwordHash, fullName string) (*models.User, bool, error) {
	if !utils.IsHash(passwordHash) {
		return nil, false, ErrNotHashed
	}
	u, created, err := s.users.Create(ctx, email, passwordHash, fullName, models.RoleMember)
	if err != nil {
		return nil, false, fmt.Errorf("provision %s: %w", email, err)
	}
	if created {
		s.logger.Info("member account created", zap.Int64("user_id", u.ID), zap.String("email", u.Email))
	}
	return u, created, nil
}

// CreateAdmin creates an admin account from a plain password.
func (s *Service) CreateAdmin(ctx context.Context, email, password, fullName string) (*models.User, bool, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, err
	}
	return s.users.Create(ctx, email, hash, fullName, models.RoleAdmin)
}

// EnsureAdmin seeds the first admin account when email and password are set.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, fullName string) error {
	if email == "" || password == "" {
		return nil
	}
	u, created, err := s.CreateAdmin(ctx, email, password, fullName)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		s.logger.Info("admin account seeded", zap.String("email", u.Email))
	}
	return nil
}

// Me returns the account behind a token's user id.
func (s *Service) Me(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]models.UserPublic, error) {
	return s.users.List(ctx)
}
