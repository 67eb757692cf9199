package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"user-api/internal/core/apperr"
	"user-api/internal/domain"
)

const errInvalidCredentials = "Invalid credentials"

type TokenIssuer interface {
	Issue(userID, email, role string) (string, error)
}

type AuthService struct {
	users  *UserService
	hasher PasswordHasher
	tokens TokenIssuer
	log    *zap.Logger

	// compared against on unknown emails so both failure paths cost one bcrypt run
	dummyHash func() string
}

func NewAuthService(users *UserService, hasher PasswordHasher, tokens TokenIssuer, l *zap.Logger) *AuthService {
	if l == nil {
		l = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    l.Named("auth"),
		dummyHash: sync.OnceValue(func() string {
			h, _ := hasher.Hash("not-a-real-password")
			return h
		}),
	}
}

// Signup registers a regular user. Role and isActive cannot be chosen here.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*domain.User, error) {
	return s.users.Create(ctx, CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleUser,
	})
}

// Login verifies the credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.hasher.Compare(s.dummyHash(), password)
		s.log.Warn("login failed", zap.String("reason", "unknown email"))
		return nil, "", apperr.Unauthorized(errInvalidCredentials)
	}
	if err != nil {
		return nil, "", err
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		s.log.Warn("login failed", zap.String("reason", "bad password"), zap.String("user_id", u.ID))
		return nil, "", apperr.Unauthorized(errInvalidCredentials)
	}

	token, err := s.tokens.Issue(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, "", apperr.Internal("issue token failed", err)
	}
	s.log.Info("user logged in", zap.String("user_id", u.ID))
	return u, token, nil
}
