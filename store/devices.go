package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"modbus-registry-api/models"
)

const deviceColumns = `id, device_id, slave_id, ip_address, port, device_name, model, last_seen, status, created_at`

// DeviceStore persists registered Modbus devices.
type DeviceStore struct {
	DB *pgxpool.Pool
}

func NewDeviceStore(db *pgxpool.Pool) *DeviceStore { return &DeviceStore{DB: db} }

func scanDevice(row interface{ Scan(...any) error }) (*models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.DeviceID, &d.SlaveID, &d.IPAddress, &d.Port,
		&d.DeviceName, &d.Model, &d.LastSeen, &d.Status, &d.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

func (s *DeviceStore) Create(ctx context.Context, deviceID string, slaveID int, deviceName, model string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO devices (device_id, slave_id, device_name, model)
		VALUES ($1, $2, $3, NULLIF($4, ''))
	`, deviceID, slaveID, deviceName, model)
	return mapError(err)
}

func (s *DeviceStore) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	return scanDevice(s.DB.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE id = $1
	`, id))
}

func (s *DeviceStore) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	return scanDevice(s.DB.QueryRow(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		WHERE device_id = $1
	`, deviceID))
}

func (s *DeviceStore) ListAll(ctx context.Context) ([]models.Device, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM devices
		ORDER BY created_at
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

func (s *DeviceStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE devices SET status = $1 WHERE id = $2
	`, status, id)
	return mapError(err)
}

func (s *DeviceStore) UpdateLastSeen(ctx context.Context, id int64, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE devices SET last_seen = $1 WHERE id = $2
	`, at, id)
	return mapError(err)
}

func (s *DeviceStore) UpdateNetwork(ctx context.Context, id int64, ipAddress string, port int) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE devices SET ip_address = $1, port = $2 WHERE id = $3
	`, ipAddress, port, id)
	return mapError(err)
}
