package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"modbus-registry-api/models"
)

// UserStore persists registry accounts.
type UserStore struct {
	DB *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore { return &UserStore{DB: db} }

func (s *UserStore) Create(ctx context.Context, username, passwordHash string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
	`, username, passwordHash)
	return mapError(err)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.DB.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.DB.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}
