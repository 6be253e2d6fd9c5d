package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"modbus-registry-api/models"
	"modbus-registry-api/store"
)

// In-memory stores backing the service tests. They reuse the pgx-backed
// stores' sentinel errors so the services see the same signals.

type memUserStore struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]*models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byName: map[string]*models.User{}}
}

func (s *memUserStore) Create(ctx context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[username]; ok {
		return store.ErrDuplicate
	}
	s.nextID++
	s.byName[username] = &models.User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	return nil
}

func (s *memUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byName {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memUserStore) delete(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byName, username)
}

type memTokenStore struct {
	mu        sync.Mutex
	nextID    int64
	byToken   map[string]*models.AuthToken
	createErr error
	getErr    error
	deleteErr error
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{byToken: map[string]*models.AuthToken{}}
}

func (s *memTokenStore) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) (*models.AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	t := &models.AuthToken{
		ID:        s.nextID,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	s.byToken[token] = t
	copied := *t
	return &copied, nil
}

func (s *memTokenStore) GetValid(ctx context.Context, token string, now time.Time) (*models.AuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.byToken[token]
	if !ok || !t.ExpiresAt.After(now) {
		return nil, store.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *memTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var n int64
	for raw, t := range s.byToken {
		if !t.ExpiresAt.After(now) {
			delete(s.byToken, raw)
			n++
		}
	}
	return n, nil
}

func (s *memTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

type memDeviceStore struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]*models.Device
}

func newMemDeviceStore() *memDeviceStore {
	return &memDeviceStore{byKey: map[string]*models.Device{}}
}

func (s *memDeviceStore) Create(ctx context.Context, deviceID string, slaveID int, deviceName, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[deviceID]; ok {
		return store.ErrDuplicate
	}
	s.nextID++
	d := &models.Device{
		ID:         s.nextID,
		DeviceID:   deviceID,
		SlaveID:    slaveID,
		DeviceName: deviceName,
		Status:     models.DeviceOffline,
		CreatedAt:  time.Now(),
	}
	if model != "" {
		d.Model = &model
	}
	s.byKey[deviceID] = d
	return nil
}

func (s *memDeviceStore) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.byKey {
		if d.ID == id {
			copied := *d
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memDeviceStore) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byKey[deviceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *memDeviceStore) ListAll(ctx context.Context) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Device{}
	for _, d := range s.byKey {
		out = append(out, *d)
	}
	return out, nil
}

func (s *memDeviceStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.byKey {
		if d.ID == id {
			d.Status = status
			return nil
		}
	}
	return nil
}

func (s *memDeviceStore) UpdateLastSeen(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.byKey {
		if d.ID == id {
			t := at
			d.LastSeen = &t
			return nil
		}
	}
	return nil
}

func (s *memDeviceStore) UpdateNetwork(ctx context.Context, id int64, ipAddress string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.byKey {
		if d.ID == id {
			ip := ipAddress
			p := port
			d.IPAddress = &ip
			d.Port = &p
			return nil
		}
	}
	return nil
}

func regKey(deviceID int64, registerType string, address int) string {
	return fmt.Sprintf("%d/%s/%d", deviceID, registerType, address)
}

type memRegisterStore struct {
	mu        sync.Mutex
	nextID    int64
	byKey     map[string]*models.Register
	getErrs   map[string]error
	updateErr error
}

func newMemRegisterStore() *memRegisterStore {
	return &memRegisterStore{
		byKey:   map[string]*models.Register{},
		getErrs: map[string]error{},
	}
}

func (s *memRegisterStore) Create(ctx context.Context, r *models.CreateRegisterRequest) (*models.Register, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regKey(r.DeviceID, r.RegisterType, r.Address)
	if _, ok := s.byKey[key]; ok {
		return nil, store.ErrDuplicate
	}
	s.nextID++
	reg := &models.Register{
		ID:           s.nextID,
		DeviceID:     r.DeviceID,
		RegisterType: r.RegisterType,
		Address:      r.Address,
		Value:        r.Value,
		MinValue:     r.MinValue,
		MaxValue:     r.MaxValue,
		DefaultValue: r.DefaultValue,
		ReadOnly:     r.ReadOnly,
		UpdatedAt:    time.Now(),
		CreatedAt:    time.Now(),
	}
	if r.Description != "" {
		desc := r.Description
		reg.Description = &desc
	}
	s.byKey[key] = reg
	copied := *reg
	return &copied, nil
}

func (s *memRegisterStore) Get(ctx context.Context, deviceID int64, registerType string, address int) (*models.Register, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := regKey(deviceID, registerType, address)
	if err, ok := s.getErrs[key]; ok {
		return nil, err
	}
	r, ok := s.byKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *memRegisterStore) ListForDevice(ctx context.Context, deviceID int64) ([]models.Register, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Register{}
	for _, r := range s.byKey {
		if r.DeviceID == deviceID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memRegisterStore) UpdateValue(ctx context.Context, deviceID int64, registerType string, address, value int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	r, ok := s.byKey[regKey(deviceID, registerType, address)]
	if !ok {
		return store.ErrNotFound
	}
	r.Value = value
	r.UpdatedAt = at
	return nil
}

func (s *memRegisterStore) value(deviceID int64, registerType string, address int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byKey[regKey(deviceID, registerType, address)]; ok {
		return r.Value
	}
	return -1
}

type memHistoryStore struct {
	mu        sync.Mutex
	entries   []models.AccessLogEntry
	appendErr error
}

func newMemHistoryStore() *memHistoryStore {
	return &memHistoryStore{}
}

func (s *memHistoryStore) Append(ctx context.Context, registerID, userID int64, oldValue, newValue int, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.entries = append(s.entries, models.AccessLogEntry{
		ID:         int64(len(s.entries) + 1),
		RegisterID: registerID,
		UserID:     userID,
		OldValue:   oldValue,
		NewValue:   newValue,
		Action:     action,
		Timestamp:  time.Now(),
	})
	return nil
}

func (s *memHistoryStore) ListForRegister(ctx context.Context, registerID int64, limit int) ([]models.AccessLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AccessLogEntry{}
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].RegisterID == registerID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *memHistoryStore) all() []models.AccessLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AccessLogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
