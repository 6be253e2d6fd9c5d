package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"modbus-registry-api/models"
)

const registerColumns = `id, device_id, register_type, address, value, min_value, max_value, default_value, read_only, description, updated_at, created_at`

// RegisterStore persists the shadow copy of device registers.
type RegisterStore struct {
	DB *pgxpool.Pool
}

func NewRegisterStore(db *pgxpool.Pool) *RegisterStore { return &RegisterStore{DB: db} }

func scanRegister(row interface{ Scan(...any) error }) (*models.Register, error) {
	var r models.Register
	err := row.Scan(&r.ID, &r.DeviceID, &r.RegisterType, &r.Address, &r.Value,
		&r.MinValue, &r.MaxValue, &r.DefaultValue, &r.ReadOnly, &r.Description,
		&r.UpdatedAt, &r.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func (s *RegisterStore) Create(ctx context.Context, r *models.CreateRegisterRequest) (*models.Register, error) {
	return scanRegister(s.DB.QueryRow(ctx, `
		INSERT INTO registers
			(device_id, register_type, address, value, min_value, max_value, default_value, read_only, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		RETURNING `+registerColumns+`
	`, r.DeviceID, r.RegisterType, r.Address, r.Value, r.MinValue, r.MaxValue,
		r.DefaultValue, r.ReadOnly, r.Description))
}

// Get looks a register up by its natural key.
func (s *RegisterStore) Get(ctx context.Context, deviceID int64, registerType string, address int) (*models.Register, error) {
	return scanRegister(s.DB.QueryRow(ctx, `
		SELECT `+registerColumns+`
		FROM registers
		WHERE device_id = $1 AND register_type = $2 AND address = $3
	`, deviceID, registerType, address))
}

func (s *RegisterStore) ListForDevice(ctx context.Context, deviceID int64) ([]models.Register, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+registerColumns+`
		FROM registers
		WHERE device_id = $1
		ORDER BY register_type, address
	`, deviceID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	registers := []models.Register{}
	for rows.Next() {
		r, err := scanRegister(rows)
		if err != nil {
			return nil, err
		}
		registers = append(registers, *r)
	}
	return registers, rows.Err()
}

// UpdateValue reports ErrNotFound when the row vanished since it was read,
// so callers do not audit a write that never landed.
func (s *RegisterStore) UpdateValue(ctx context.Context, deviceID int64, registerType string, address, value int, at time.Time) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE registers
		SET value = $1, updated_at = $2
		WHERE device_id = $3 AND register_type = $4 AND address = $5
	`, value, at, deviceID, registerType, address)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
