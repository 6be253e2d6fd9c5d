package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"modbus-registry-api/models"
)

// HistoryStore appends to the register access audit trail.
type HistoryStore struct {
	DB *pgxpool.Pool
}

func NewHistoryStore(db *pgxpool.Pool) *HistoryStore { return &HistoryStore{DB: db} }

func (s *HistoryStore) Append(ctx context.Context, registerID, userID int64, oldValue, newValue int, action string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO register_history (register_id, user_id, old_value, new_value, action)
		VALUES ($1, $2, $3, $4, $5)
	`, registerID, userID, oldValue, newValue, action)
	return mapError(err)
}

func (s *HistoryStore) ListForRegister(ctx context.Context, registerID int64, limit int) ([]models.AccessLogEntry, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, register_id, user_id, old_value, new_value, action, timestamp
		FROM register_history
		WHERE register_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, registerID, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	entries := []models.AccessLogEntry{}
	for rows.Next() {
		var e models.AccessLogEntry
		if err := rows.Scan(&e.ID, &e.RegisterID, &e.UserID, &e.OldValue,
			&e.NewValue, &e.Action, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
