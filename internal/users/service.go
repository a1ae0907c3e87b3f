package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicworks/fixline/internal/reports/model"
)

// userRepo is the storage interface consumed by UserService.
type userRepo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role model.Role, dept model.Department) ([]*User, error)
	SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
}

// UserService implements business logic for user account management.
type UserService struct {
	repo   userRepo
	logger *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo userRepo, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

// Signup creates a new account. Field heads must carry exactly one
// department; reporters and maintainers must not carry any.
func (s *UserService) Signup(ctx context.Context, emailAddr, password, name string, role model.Role, dept model.Department) (*User, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	name = strings.TrimSpace(name)

	switch {
	case emailAddr == "" || password == "":
		return nil, fmt.Errorf("email and password are required")
	case len(password) < 8:
		return nil, fmt.Errorf("password must be at least 8 characters")
	case name == "":
		return nil, fmt.Errorf("name is required")
	case !role.Valid():
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if role == model.RoleFieldHead {
		if !dept.Valid() {
			return nil, fmt.Errorf("field head accounts require a department")
		}
	} else if dept != "" {
		return nil, fmt.Errorf("only field head accounts carry a department")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:        emailAddr,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		Department:   dept,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user created",
		zap.String("user_id", u.ID.String()),
		zap.String("role", string(u.Role)),
	)
	return u, nil
}

// Login verifies email/password credentials and returns the user on success.
func (s *UserService) Login(ctx context.Context, emailAddr, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(emailAddr)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// ListFieldHeads returns the field head directory, optionally narrowed to a
// single department. An empty department lists all of them.
func (s *UserService) ListFieldHeads(ctx context.Context, dept model.Department) ([]*FieldHeadSummary, error) {
	if dept != "" && !dept.Valid() {
		return nil, fmt.Errorf("unknown department %q", dept)
	}

	list, err := s.repo.ListByRole(ctx, model.RoleFieldHead, dept)
	if err != nil {
		return nil, err
	}

	out := make([]*FieldHeadSummary, 0, len(list))
	for _, u := range list {
		out = append(out, &FieldHeadSummary{
			ID:         u.ID,
			Name:       u.Name,
			Email:      u.Email,
			Department: u.Department,
		})
	}
	return out, nil
}

// FieldHead resolves an assignment target to its name and department.
// Accounts that exist but do not hold the field head role are treated as
// not found. Satisfies the assignment router's directory interface.
func (s *UserService) FieldHead(ctx context.Context, id uuid.UUID) (string, model.Department, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	if u.Role != model.RoleFieldHead {
		return "", "", ErrNotFound
	}
	return u.Name, u.Department, nil
}

// ChangePassword verifies the current password and sets a new one.
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return fmt.Errorf("invalid credentials")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.SetPasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	s.logger.Info("password changed", zap.String("user_id", userID.String()))
	return nil
}
