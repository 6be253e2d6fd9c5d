package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"modbus-registry-api/models"
)

// TokenStore persists opaque bearer tokens.
type TokenStore struct {
	DB *pgxpool.Pool
}

func NewTokenStore(db *pgxpool.Pool) *TokenStore { return &TokenStore{DB: db} }

func (s *TokenStore) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.AuthToken, error) {
	var t models.AuthToken
	err := s.DB.QueryRow(ctx, `
		INSERT INTO auth_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token, expires_at, created_at
	`, userID, token, expiresAt).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// GetValid returns the token row only while it is unexpired at `now`.
// Expired, purged and never-issued tokens are all ErrNotFound.
func (s *TokenStore) GetValid(ctx context.Context, token string, now time.Time) (*models.AuthToken, error) {
	var t models.AuthToken
	err := s.DB.QueryRow(ctx, `
		SELECT id, user_id, token, expires_at, created_at
		FROM auth_tokens
		WHERE token = $1 AND expires_at > $2
	`, token, now).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// DeleteExpired purges token rows with expires_at <= now. Advisory storage
// hygiene only; validation filters by expiry itself.
func (s *TokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
		DELETE FROM auth_tokens
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
