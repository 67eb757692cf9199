package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"user-api/internal/core/apperr"
	"user-api/internal/domain"
	"user-api/pkg/utils"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

type PasswordHasher interface {
	Hash(pw string) (string, error)
	Compare(hashed, pw string) bool
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role // empty means user
	IsActive *bool       // nil means true
}

// UpdateUserInput carries only the fields present in the request.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.Role
	IsActive *bool
}

type Page struct {
	Data  []domain.User
	Total int64
}

type UserService struct {
	repo   domain.UserRepository
	hasher PasswordHasher
	log    *zap.Logger
}

func NewUserService(repo domain.UserRepository, hasher PasswordHasher, l *zap.Logger) *UserService {
	if l == nil {
		l = zap.NewNop()
	}
	return &UserService{repo: repo, hasher: hasher, log: l.Named("users")}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	email := NormalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("User already exists")
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperr.Internal("find user failed", err)
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.BadRequest(fmt.Sprintf("role must be one of: %s, %s", domain.RoleUser, domain.RoleAdmin))
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("hash password failed", err)
	}

	u := &domain.User{
		ID:           utils.NewID(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, apperr.Internal("create user failed", err)
	}
	s.log.Info("user created", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *UserService) FindAll(ctx context.Context, limit, offset int) (Page, error) {
	if limit < 0 || offset < 0 {
		return Page{}, apperr.BadRequest("limit and offset must not be negative")
	}
	limit = min(limit, MaxPageLimit)

	users, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return Page{}, apperr.Internal("list users failed", err)
	}
	return Page{Data: users, Total: total}, nil
}

func (s *UserService) FindOne(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("User with ID %s not found", id))
	}
	if err != nil {
		return nil, apperr.Internal("find user failed", err)
	}
	return u, nil
}

// FindByEmail returns domain.ErrUserNotFound (unwrapped) when nobody owns the email.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, apperr.Internal("find user failed", err)
	}
	return u, nil
}

// Update applies in to user id on behalf of actor. Checks run in a fixed
// order so a non-admin touching another account always gets 403, even for
// a missing id or a payload that would otherwise be rejected.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput, actor domain.Identity) (*domain.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, apperr.Forbidden("You cannot update another user")
	}

	u, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		return nil, apperr.BadRequest("Email cannot be modified")
	}
	if (in.Role != nil || in.IsActive != nil) && !actor.IsAdmin() {
		return nil, apperr.Forbidden("Only admins can change role or isActive status")
	}
	if in.Role != nil && !in.Role.Valid() {
		return nil, apperr.BadRequest(fmt.Sprintf("role must be one of: %s, %s", domain.RoleUser, domain.RoleAdmin))
	}

	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, apperr.Internal("hash password failed", err)
		}
		u.PasswordHash = hash
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("User with ID %s not found", id))
		}
		return nil, apperr.Internal("update user failed", err)
	}
	s.log.Info("user updated",
		zap.String("user_id", u.ID),
		zap.String("actor_id", actor.UserID),
		zap.Bool("password_changed", in.Password != nil),
	)
	return u, nil
}

func (s *UserService) Remove(ctx context.Context, id string) error {
	err := s.repo.SoftDelete(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return apperr.NotFound(fmt.Sprintf("User with ID %s not found", id))
	}
	if err != nil {
		return apperr.Internal("remove user failed", err)
	}
	s.log.Info("user removed", zap.String("user_id", id))
	return nil
}

// EnsureAdmin creates an active admin for email, or promotes and reactivates
// the existing account. The password is only used on creation.
// created reports which of the two happened.
func (s *UserService) EnsureAdmin(ctx context.Context, email, name, password string) (u *domain.User, created bool, err error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, false, apperr.BadRequest("admin email is required")
	}

	u, err = s.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		if len(password) < 6 {
			return nil, false, apperr.BadRequest("admin password must be at least 6 characters")
		}
		if strings.TrimSpace(name) == "" {
			name = "Administrator"
		}
		u, err = s.Create(ctx, CreateUserInput{Name: name, Email: email, Password: password, Role: domain.RoleAdmin})
		if err != nil {
			return nil, false, err
		}
		return u, true, nil
	case err != nil:
		return nil, false, err
	}

	if u.IsAdmin() && u.IsActive {
		return u, false, nil
	}
	u.Role = domain.RoleAdmin
	u.IsActive = true
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, false, apperr.Internal("promote admin failed", err)
	}
	s.log.Info("user promoted to admin", zap.String("user_id", u.ID))
	return u, false, nil
}
