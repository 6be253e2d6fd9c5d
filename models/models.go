package models

import "time"

// Device status values.
const (
	DeviceOnline  = "ONLINE"
	DeviceOffline = "OFFLINE"
	DeviceError   = "ERROR"
)

// Register types, after the Modbus data model.
const (
	RegisterCoil          = "COIL"
	RegisterDiscreteInput = "DISCRETE_INPUT"
	RegisterInput         = "INPUT"
	RegisterHolding       = "HOLDING"
)

// Audit actions.
const (
	ActionRead  = "READ"
	ActionWrite = "WRITE"
)

// ValidRegisterType reports whether t is one of the four register classes.
func ValidRegisterType(t string) bool {
	switch t {
	case RegisterCoil, RegisterDiscreteInput, RegisterInput, RegisterHolding:
		return true
	}
	return false
}

// ValidDeviceStatus reports whether s is a known device status.
func ValidDeviceStatus(s string) bool {
	switch s {
	case DeviceOnline, DeviceOffline, DeviceError:
		return true
	}
	return false
}

// User represents an account in the registry
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AuthToken represents an opaque bearer token persisted for a user
type AuthToken struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Device represents a registered Modbus slave
type Device struct {
	ID         int64      `json:"id" db:"id"`
	DeviceID   string     `json:"device_id" db:"device_id"`
	SlaveID    int        `json:"slave_id" db:"slave_id"`
	IPAddress  *string    `json:"ip_address,omitempty" db:"ip_address"`
	Port       *int       `json:"port,omitempty" db:"port"`
	DeviceName string     `json:"device_name" db:"device_name"`
	Model      *string    `json:"model,omitempty" db:"model"`
	LastSeen   *time.Time `json:"last_seen,omitempty" db:"last_seen"`
	Status     string     `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Register is the shadow copy of one register slot on a device.
// (device_id, register_type, address) is the natural key.
type Register struct {
	ID           int64     `json:"id" db:"id"`
	DeviceID     int64     `json:"device_id" db:"device_id"`
	RegisterType string    `json:"register_type" db:"register_type"`
	Address      int       `json:"address" db:"address"`
	Value        int       `json:"value" db:"value"`
	MinValue     int       `json:"min_value" db:"min_value"`
	MaxValue     int       `json:"max_value" db:"max_value"`
	DefaultValue int       `json:"default_value" db:"default_value"`
	ReadOnly     bool      `json:"read_only" db:"read_only"`
	Description  *string   `json:"description,omitempty" db:"description"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// AccessLogEntry is one row of the append-only register audit trail
type AccessLogEntry struct {
	ID         int64     `json:"id" db:"id"`
	RegisterID int64     `json:"register_id" db:"register_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	OldValue   int       `json:"old_value" db:"old_value"`
	NewValue   int       `json:"new_value" db:"new_value"`
	Action     string    `json:"action" db:"action"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

// SignUpRequest represents a sign-up request
type SignUpRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned on successful login
type TokenResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// UserResponse echoes the authenticated user without the password hash
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// CreateDeviceRequest represents a device registration request.
// SlaveID arrives as a string and must parse as an integer in [1,247].
type CreateDeviceRequest struct {
	DeviceID   string `json:"device_id" validate:"required,max=64"`
	SlaveID    string `json:"slave_id" validate:"required"`
	DeviceName string `json:"device_name" validate:"required,max=128"`
	Model      string `json:"model"`
}

// UpdateNetworkRequest updates a device's address and port
type UpdateNetworkRequest struct {
	IPAddress string `json:"ip_address" validate:"required"`
	Port      int    `json:"port" validate:"required"`
}

// CreateRegisterRequest declares a register slot on a device
type CreateRegisterRequest struct {
	DeviceID     int64  `json:"device_id" validate:"required"`
	RegisterType string `json:"register_type" validate:"required"`
	Address      int    `json:"address" validate:"min=0"`
	Value        int    `json:"value"`
	MinValue     int    `json:"min_value"`
	MaxValue     int    `json:"max_value"`
	DefaultValue int    `json:"default_value"`
	ReadOnly     bool   `json:"read_only"`
	Description  string `json:"description"`
}

// WriteRegisterRequest represents a single register write
type WriteRegisterRequest struct {
	DeviceID     int64  `json:"device_id" validate:"required"`
	RegisterType string `json:"register_type" validate:"required"`
	Address      int    `json:"address" validate:"min=0"`
	Value        int    `json:"value"`
}

// BatchReadRequest reads several addresses of one register type on one device
type BatchReadRequest struct {
	DeviceID     int64  `json:"device_id" validate:"required"`
	RegisterType string `json:"register_type" validate:"required"`
	Addresses    []int  `json:"addresses" validate:"required,min=1"`
}

// BatchWriteRequest composes several single writes
type BatchWriteRequest struct {
	Registers []WriteRegisterRequest `json:"registers" validate:"required,min=1"`
}

// StatusResponse is a business-level outcome: success, or a warning that
// still travels on a 200.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func StatusSuccess(msg string) StatusResponse {
	return StatusResponse{Status: "success", Message: msg}
}

func StatusWarning(msg string) StatusResponse {
	return StatusResponse{Status: "warning", Message: msg}
}
