package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redtrack-io/redtrack/internal/auth"
	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/models"
	"github.com/redtrack-io/redtrack/internal/repository"
)

// ErrInvalidCredentials is returned for unknown logins, wrong passwords and
// inactive accounts alike.
var ErrInvalidCredentials = errors.New("invalid login or password")

// AuthService exchanges credentials for signed tokens.
type AuthService struct {
	users      repository.UserRepository
	resolver   *auth.Resolver
	jwtManager *auth.JWTManager
}

func NewAuthService(users repository.UserRepository, resolver *auth.Resolver, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{users: users, resolver: resolver, jwtManager: jwtManager}
}

// Login checks the password and returns a token whose perms claim lists the
// user's permissions across all projects.
func (s *AuthService) Login(ctx context.Context, login, password string) (*models.User, string, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if core.IsNotFound(err) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !user.IsActive() || !user.CheckPassword(password) {
		log.Printf("auth: rejected login=%q status=%d", login, user.Status)
		return nil, "", ErrInvalidCredentials
	}

	perms, err := s.resolver.ResolveAllPermissions(ctx, user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve permissions of user %d: %w", user.ID, err)
	}
	token, err := s.jwtManager.GenerateToken(user.ID, user.Login, user.IsAdmin(), perms)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return user, token, nil
}

// ValidateToken returns the claims of a token issued by Login.
func (s *AuthService) ValidateToken(token string) (*auth.Claims, error) {
	return s.jwtManager.ValidateToken(token)
}
