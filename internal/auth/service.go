package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/parkyard/parkyard/internal/shared"
)

// Tokens issues and resolves bearer tokens.
type Tokens interface {
	Issue(ctx context.Context, op shared.Operator) (string, time.Time, error)
	Lookup(ctx context.Context, token string) (shared.Operator, error)
	Revoke(ctx context.Context, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens Tokens
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, logger: logger}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	acc, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// Login authenticates and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	acc, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}
	op := acc.Operator()
	token, expires, err := s.tokens.Issue(ctx, op)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.repo.TouchLogin(ctx, acc.ID); err != nil {
		s.logger.Warn("touch login", slog.Any("error", err))
	}
	return LoginResult{Token: token, ExpiresAt: expires, Operator: op}, nil
}

// Logout revokes a token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve maps a token to its operator.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Operator, error) {
	return s.tokens.Lookup(ctx, token)
}

// HashPassword produces a bcrypt hash for seeding operator accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
