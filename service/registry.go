package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"modbus-registry-api/apperr"
	"modbus-registry-api/metrics"
	"modbus-registry-api/models"
	"modbus-registry-api/store"
)

// Modbus slave address range.
const (
	slaveIDMin = 1
	slaveIDMax = 247
)

// DeviceStore is the slice of device persistence the registry needs.
type DeviceStore interface {
	Create(ctx context.Context, deviceID string, slaveID int, deviceName, model string) error
	GetByID(ctx context.Context, id int64) (*models.Device, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	ListAll(ctx context.Context) ([]models.Device, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdateLastSeen(ctx context.Context, id int64, at time.Time) error
	UpdateNetwork(ctx context.Context, id int64, ipAddress string, port int) error
}

// RegisterStore is the slice of register persistence the registry needs.
type RegisterStore interface {
	Create(ctx context.Context, r *models.CreateRegisterRequest) (*models.Register, error)
	Get(ctx context.Context, deviceID int64, registerType string, address int) (*models.Register, error)
	ListForDevice(ctx context.Context, deviceID int64) ([]models.Register, error)
	UpdateValue(ctx context.Context, deviceID int64, registerType string, address, value int, at time.Time) error
}

// HistoryStore appends and reads the register audit trail.
type HistoryStore interface {
	Append(ctx context.Context, registerID, userID int64, oldValue, newValue int, action string) error
	ListForRegister(ctx context.Context, registerID int64, limit int) ([]models.AccessLogEntry, error)
}

// TokenValidator authenticates a raw Authorization header.
type TokenValidator interface {
	ValidateToken(ctx context.Context, header string) (*models.User, error)
}

// RegistryService enforces existence, uniqueness and read/write permission
// rules over devices and registers. Every operation authenticates the caller
// before touching the store.
type RegistryService struct {
	auth       TokenValidator
	devices    DeviceStore
	registers  RegisterStore
	history    HistoryStore
	staleAfter time.Duration
	now        func() time.Time
}

func NewRegistryService(auth TokenValidator, devices DeviceStore, registers RegisterStore, history HistoryStore, staleAfter time.Duration) *RegistryService {
	return &RegistryService{
		auth:       auth,
		devices:    devices,
		registers:  registers,
		history:    history,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// CreateDevice registers a new device. The device_id UNIQUE constraint is
// the source of truth for duplicates; the pre-check only short-circuits.
// The returned row is re-read from the store so generated fields are
// authoritative.
func (s *RegistryService) CreateDevice(ctx context.Context, authHeader string, req models.CreateDeviceRequest) (*models.Device, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return nil, err
	}

	if req.DeviceID == "" || req.SlaveID == "" || req.DeviceName == "" {
		return nil, apperr.Validation("device_id, slave_id and device_name are required")
	}

	slaveID, err := strconv.Atoi(req.SlaveID)
	if err != nil || slaveID < slaveIDMin || slaveID > slaveIDMax {
		return nil, apperr.Validation("slave_id must be an integer between %d and %d", slaveIDMin, slaveIDMax)
	}

	_, err = s.devices.GetByDeviceID(ctx, req.DeviceID)
	switch {
	case err == nil:
		return nil, apperr.Conflict("device ID already exists")
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal(err)
	}

	if err := s.devices.Create(ctx, req.DeviceID, slaveID, req.DeviceName, req.Model); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("device ID already exists")
		}
		return nil, apperr.Internal(err)
	}

	device, err := s.devices.GetByDeviceID(ctx, req.DeviceID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("device created but not found: %w", err))
	}

	slog.Info("device created",
		slog.String("device_id", device.DeviceID),
		slog.Int("slave_id", device.SlaveID))
	return device, nil
}

// GetDevice returns one device by its string key.
func (s *RegistryService) GetDevice(ctx context.Context, authHeader, deviceID string) (*models.Device, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return nil, err
	}
	return s.getDeviceByKey(ctx, deviceID)
}

// ListDevices returns all registered devices.
func (s *RegistryService) ListDevices(ctx context.Context, authHeader string) ([]models.Device, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return nil, err
	}
	devices, err := s.devices.ListAll(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return devices, nil
}

// UpdateDeviceStatus sets the stored status. Transitioning to ONLINE also
// refreshes last_seen; other destinations leave it untouched.
func (s *RegistryService) UpdateDeviceStatus(ctx context.Context, authHeader, deviceID, status string) (models.StatusResponse, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return models.StatusResponse{}, err
	}

	device, err := s.getDeviceByKey(ctx, deviceID)
	if err != nil {
		return models.StatusResponse{}, err
	}

	if !models.ValidDeviceStatus(status) {
		return models.StatusResponse{}, apperr.Validation("status must be one of ONLINE, OFFLINE, ERROR")
	}

	if err := s.devices.UpdateStatus(ctx, device.ID, status); err != nil {
		return models.StatusResponse{}, apperr.Internal(err)
	}
	if status == models.DeviceOnline {
		if err := s.devices.UpdateLastSeen(ctx, device.ID, s.now()); err != nil {
			return models.StatusResponse{}, apperr.Internal(err)
		}
	}
	return models.StatusSuccess("Device status updated successfully"), nil
}

// UpdateDeviceNetwork updates a device's IP address and port.
func (s *RegistryService) UpdateDeviceNetwork(ctx context.Context, authHeader, deviceID string, req models.UpdateNetworkRequest) (models.StatusResponse, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return models.StatusResponse{}, err
	}

	if req.Port < 1 || req.Port > 65535 {
		return models.StatusResponse{}, apperr.Validation("port must be between 1 and 65535")
	}

	device, err := s.getDeviceByKey(ctx, deviceID)
	if err != nil {
		return models.StatusResponse{}, err
	}

	if err := s.devices.UpdateNetwork(ctx, device.ID, req.IPAddress, req.Port); err != nil {
		return models.StatusResponse{}, apperr.Internal(err)
	}
	return models.StatusSuccess("Device network settings updated successfully"), nil
}

// GetDeviceStatus is the liveness check. A non-ONLINE status or a stale
// last_seen is reported as a business-level warning, not a transport failure.
func (s *RegistryService) GetDeviceStatus(ctx context.Context, authHeader, deviceID string) (models.StatusResponse, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return models.StatusResponse{}, err
	}

	device, err := s.getDeviceByKey(ctx, deviceID)
	if err != nil {
		return models.StatusResponse{}, err
	}

	if device.Status != models.DeviceOnline {
		slog.Warn("device not online",
			slog.String("device_id", deviceID),
			slog.String("status", device.Status))
		return models.StatusWarning("Device is " + device.Status), nil
	}

	if device.LastSeen == nil {
		return models.StatusWarning("Device has never reported in"), nil
	}
	if elapsed := s.now().Sub(*device.LastSeen); elapsed > s.staleAfter {
		secs := int64(elapsed.Seconds())
		slog.Warn("device inactive",
			slog.String("device_id", deviceID),
			slog.Int64("elapsed_secs", secs))
		return models.StatusWarning(fmt.Sprintf("Device has been inactive for %d seconds", secs)), nil
	}

	return models.StatusSuccess("Device is online and active"), nil
}

// CreateRegister declares a register slot on an existing device.
func (s *RegistryService) CreateRegister(ctx context.Context, authHeader string, req models.CreateRegisterRequest) (*models.Register, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return nil, err
	}

	if !models.ValidRegisterType(req.RegisterType) {
		return nil, apperr.Validation("register_type must be one of COIL, DISCRETE_INPUT, INPUT, HOLDING")
	}
	if req.MinValue > req.MaxValue {
		return nil, apperr.Validation("min_value must not exceed max_value")
	}
	if req.Value < req.MinValue || req.Value > req.MaxValue {
		return nil, apperr.Validation("value %d out of range [%d, %d]", req.Value, req.MinValue, req.MaxValue)
	}
	if req.DefaultValue < req.MinValue || req.DefaultValue > req.MaxValue {
		return nil, apperr.Validation("default_value %d out of range [%d, %d]", req.DefaultValue, req.MinValue, req.MaxValue)
	}

	if err := s.requireDeviceExists(ctx, req.DeviceID); err != nil {
		return nil, err
	}

	reg, err := s.registers.Create(ctx, &req)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("register already exists at this address")
		}
		return nil, apperr.Internal(err)
	}
	return reg, nil
}

// ReadRegister reads one register's shadow value and records a READ audit
// entry.
func (s *RegistryService) ReadRegister(ctx context.Context, authHeader string, deviceID int64, registerType string, address int) (*models.Register, error) {
	user, err := s.auth.ValidateToken(ctx, authHeader)
	if err != nil {
		return nil, err
	}
	return s.readRegisterAs(ctx, user, deviceID, registerType, address)
}

// WriteRegister updates one register's shadow value within its bounds and
// records a WRITE audit entry.
func (s *RegistryService) WriteRegister(ctx context.Context, authHeader string, req models.WriteRegisterRequest) (models.StatusResponse, error) {
	user, err := s.auth.ValidateToken(ctx, authHeader)
	if err != nil {
		return models.StatusResponse{}, err
	}
	return s.writeRegisterAs(ctx, user, req)
}

// ListDeviceRegisters returns every register declared on a device.
func (s *RegistryService) ListDeviceRegisters(ctx context.Context, authHeader string, deviceID int64) ([]models.Register, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return nil, err
	}
	if err := s.requireDeviceExists(ctx, deviceID); err != nil {
		return nil, err
	}
	registers, err := s.registers.ListForDevice(ctx, deviceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return registers, nil
}

// RegisterHistory returns the most recent audit entries for one register.
func (s *RegistryService) RegisterHistory(ctx context.Context, authHeader string, deviceID int64, registerType string, address, limit int) ([]models.AccessLogEntry, error) {
	if _, err := s.auth.ValidateToken(ctx, authHeader); err != nil {
		return nil, err
	}

	reg, err := s.checkRegisterAccess(ctx, deviceID, registerType, address, false)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	entries, err := s.history.ListForRegister(ctx, reg.ID, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return entries, nil
}

// ---- internals shared with the batch coordinator ----

func (s *RegistryService) getDeviceByKey(ctx context.Context, deviceID string) (*models.Device, error) {
	device, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("device not found: %s", deviceID)
		}
		return nil, apperr.Internal(err)
	}
	return device, nil
}

func (s *RegistryService) requireDeviceExists(ctx context.Context, deviceID int64) error {
	_, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("device not found: %d", deviceID)
		}
		return apperr.Internal(err)
	}
	return nil
}

// checkRegisterAccess resolves the register by its natural key and, for
// writes, rejects read-only registers and the wire-read-only classes INPUT
// and DISCRETE_INPUT regardless of the stored flag.
func (s *RegistryService) checkRegisterAccess(ctx context.Context, deviceID int64, registerType string, address int, forWrite bool) (*models.Register, error) {
	reg, err := s.registers.Get(ctx, deviceID, registerType, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("register not found: device=%d type=%s address=%d",
				deviceID, registerType, address)
		}
		return nil, apperr.Internal(err)
	}

	if forWrite {
		if reg.ReadOnly {
			return nil, apperr.Forbidden("register %d is read-only", address)
		}
		if registerType == models.RegisterInput || registerType == models.RegisterDiscreteInput {
			return nil, apperr.Forbidden("cannot write to %s register", registerType)
		}
	}
	return reg, nil
}

func (s *RegistryService) readRegisterAs(ctx context.Context, user *models.User, deviceID int64, registerType string, address int) (*models.Register, error) {
	if err := s.requireDeviceExists(ctx, deviceID); err != nil {
		return nil, err
	}
	reg, err := s.checkRegisterAccess(ctx, deviceID, registerType, address, false)
	if err != nil {
		return nil, err
	}

	// Reads have no delta: old and new carry the current value.
	s.logAccess(ctx, reg.ID, user.ID, reg.Value, reg.Value, models.ActionRead)
	return reg, nil
}

func (s *RegistryService) writeRegisterAs(ctx context.Context, user *models.User, req models.WriteRegisterRequest) (models.StatusResponse, error) {
	if err := s.requireDeviceExists(ctx, req.DeviceID); err != nil {
		return models.StatusResponse{}, err
	}
	reg, err := s.checkRegisterAccess(ctx, req.DeviceID, req.RegisterType, req.Address, true)
	if err != nil {
		return models.StatusResponse{}, err
	}

	if req.Value < reg.MinValue || req.Value > reg.MaxValue {
		return models.StatusResponse{}, apperr.Validation("value %d out of range [%d, %d]",
			req.Value, reg.MinValue, reg.MaxValue)
	}

	// TODO: drive the actual Modbus write once the fieldbus transport lands;
	// until then only the shadow copy changes.
	oldValue := reg.Value
	if err := s.registers.UpdateValue(ctx, req.DeviceID, req.RegisterType, req.Address, req.Value, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.StatusResponse{}, apperr.NotFound("register not found: device=%d type=%s address=%d",
				req.DeviceID, req.RegisterType, req.Address)
		}
		return models.StatusResponse{}, apperr.Internal(err)
	}

	s.logAccess(ctx, reg.ID, user.ID, oldValue, req.Value, models.ActionWrite)
	return models.StatusSuccess("Register updated successfully"), nil
}

// logAccess appends to the audit trail. Best effort: a logging failure never
// fails the operation it records.
func (s *RegistryService) logAccess(ctx context.Context, registerID, userID int64, oldValue, newValue int, action string) {
	if err := s.history.Append(ctx, registerID, userID, oldValue, newValue, action); err != nil {
		metrics.AuditLogFailed()
		slog.Error("failed to log register access",
			slog.Int64("register_id", registerID),
			slog.String("action", action),
			slog.Any("error", err))
	}
}
