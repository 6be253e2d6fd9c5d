// Package service holds the business core of the registry: credential and
// token lifecycle, device/register access control, and batch composition.
// Stores are consumed through minimal interfaces so tests can run against
// in-memory fakes.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modbus-registry-api/apperr"
	"modbus-registry-api/models"
	"modbus-registry-api/store"
	"modbus-registry-api/utils"
)

// UserStore is the slice of user persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, username, passwordHash string) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// TokenStore is the slice of token persistence the auth service needs.
type TokenStore interface {
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.AuthToken, error)
	GetValid(ctx context.Context, token string, now time.Time) (*models.AuthToken, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuthService issues and validates opaque bearer tokens.
type AuthService struct {
	users      UserStore
	tokens     TokenStore
	bcryptCost int
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewAuthService(users UserStore, tokens TokenStore, bcryptCost int, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

// SignUp creates an account. The pre-insert existence check is a fast path;
// the users.username UNIQUE constraint is what actually closes the
// check-then-insert race, surfacing as Conflict.
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (models.StatusResponse, error) {
	if req.Username == "" {
		return models.StatusResponse{}, apperr.Validation("username is required")
	}
	if req.Password == "" {
		return models.StatusResponse{}, apperr.Validation("password is required")
	}

	_, err := s.users.GetByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return models.StatusResponse{}, apperr.Conflict("username already exists")
	case !errors.Is(err, store.ErrNotFound):
		return models.StatusResponse{}, apperr.Internal(err)
	}

	hash, err := utils.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return models.StatusResponse{}, apperr.Internal(err)
	}

	if err := s.users.Create(ctx, req.Username, hash); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.StatusResponse{}, apperr.Conflict("username already exists")
		}
		return models.StatusResponse{}, apperr.Internal(err)
	}

	slog.Info("user created", slog.String("username", req.Username))
	return models.StatusSuccess("User created successfully"), nil
}

// Login verifies credentials and mints a fresh token valid for the
// configured TTL. Unknown username and wrong password are the same
// Unauthenticated outcome.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, apperr.Unauthenticated("invalid credentials")
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthenticated("invalid credentials")
		}
		return nil, apperr.Internal(err)
	}
	if !utils.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, apperr.Unauthenticated("invalid credentials")
	}

	// Opportunistic expiry hygiene; never required for correctness since
	// validation filters by expires_at itself.
	s.CleanupExpiredTokens(ctx)

	raw, err := utils.GenerateToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	token, err := s.tokens.Create(ctx, user.ID, raw, s.now().Add(s.tokenTTL))
	if err != nil {
		// A store failure here is infrastructure, not bad credentials.
		return nil, apperr.Internal(err)
	}

	return &models.TokenResponse{
		Token:     token.Token,
		UserID:    token.UserID,
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	}, nil
}

// ValidateToken authenticates a raw Authorization header value. A "Bearer "
// prefix is stripped when present; otherwise the whole header is treated as
// the token. Expired, purged and never-issued tokens are indistinguishable.
func (s *AuthService) ValidateToken(ctx context.Context, header string) (*models.User, error) {
	if header == "" {
		return nil, apperr.Unauthenticated("missing authorization header")
	}

	raw := header
	if strings.HasPrefix(header, "Bearer ") {
		raw = strings.TrimPrefix(header, "Bearer ")
	}
	if raw == "" {
		return nil, apperr.Unauthenticated("missing token")
	}

	token, err := s.tokens.GetValid(ctx, raw, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthenticated("invalid or expired token")
		}
		return nil, apperr.Internal(err)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Orphaned token; treat like any other invalid credential.
			return nil, apperr.Unauthenticated("invalid or expired token")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// CleanupExpiredTokens purges dead token rows. Called from startup and from
// Login; failures are logged and swallowed.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		slog.Warn("token cleanup failed", slog.Any("error", err))
		return
	}
	if n > 0 {
		slog.Debug("expired tokens purged", slog.Int64("count", n))
	}
}
