package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-share/internal/auth"
	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/repository"
	"github.com/Tomlord1122/todo-share/internal/session"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt string       `json:"expires_at"`
}

const (
	minSearchTerm      = 2
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	// Logout revokes the token until it would have expired anyway.
	Logout(ctx context.Context, claims *auth.Claims) error
	// Authenticate resolves a bearer token to its live, unrevoked user.
	Authenticate(ctx context.Context, token string) (*domain.User, *auth.Claims, error)
	Me(ctx context.Context, userID uint) (*UserResponse, error)
	SearchUsers(ctx context.Context, callerID uint, term string, limit int) ([]UserResponse, error)
}

type authService struct {
	users   repository.UserRepository
	tokens  *auth.TokenService
	revoked session.RevocationStore
	log     zerolog.Logger
	now     func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, revoked session.RevocationStore, log zerolog.Logger) AuthService {
	return &authService{
		users:   users,
		tokens:  tokens,
		revoked: revoked,
		log:     log.With().Str("component", "auth_service").Logger(),
		now:     time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, fieldError("password", fmt.Sprintf("the password may not be greater than %d bytes", auth.MaxPasswordBytes))
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", user.ID).Msg("user registered")
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *authService) issue(user *domain.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:      newUserResponse(user),
		Token:     token.Value,
		TokenType: "Bearer",
		ExpiresAt: formatTime(token.ExpiresAt),
	}, nil
}

func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	return s.revoked.Revoke(ctx, claims.ID, ttl)
}

func (s *authService) Authenticate(ctx context.Context, token string) (*domain.User, *auth.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, domain.ErrTokenRevoked
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s *authService) Me(ctx context.Context, userID uint) (*UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := newUserResponse(user)
	return &resp, nil
}

func (s *authService) SearchUsers(ctx context.Context, callerID uint, term string, limit int) ([]UserResponse, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < minSearchTerm {
		return nil, fieldError("email", fmt.Sprintf("the email must be at least %d characters", minSearchTerm))
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit < 1 || limit > maxSearchLimit {
		return nil, fieldError("limit", fmt.Sprintf("the limit must be between 1 and %d", maxSearchLimit))
	}

	users, err := s.users.SearchByEmail(ctx, term, limit, callerID)
	if err != nil {
		return nil, err
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, newUserResponse(&users[i]))
	}
	return out, nil
}
