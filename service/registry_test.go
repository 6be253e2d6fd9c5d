package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"modbus-registry-api/apperr"
	"modbus-registry-api/models"
	"modbus-registry-api/store"
)

const goodHeader = "Bearer good-token"

// stubAuth authenticates exactly one header value.
type stubAuth struct {
	user *models.User
}

func (s stubAuth) ValidateToken(ctx context.Context, header string) (*models.User, error) {
	if header == goodHeader {
		return s.user, nil
	}
	return nil, apperr.Unauthenticated("invalid or expired token")
}

func newTestRegistry(t *testing.T) (*RegistryService, *memDeviceStore, *memRegisterStore, *memHistoryStore) {
	t.Helper()
	devices := newMemDeviceStore()
	registers := newMemRegisterStore()
	history := newMemHistoryStore()
	auth := stubAuth{user: &models.User{ID: 7, Username: "alice"}}
	reg := NewRegistryService(auth, devices, registers, history, 300*time.Second)
	return reg, devices, registers, history
}

func seedDevice(t *testing.T, devices *memDeviceStore, key string) *models.Device {
	t.Helper()
	if err := devices.Create(context.Background(), key, 12, "Pump", ""); err != nil {
		t.Fatalf("seed device %s: %v", key, err)
	}
	d, err := devices.GetByDeviceID(context.Background(), key)
	if err != nil {
		t.Fatalf("read back device %s: %v", key, err)
	}
	return d
}

func seedRegister(t *testing.T, registers *memRegisterStore, deviceID int64, registerType string, address, value, min, max int, readOnly bool) *models.Register {
	t.Helper()
	reg, err := registers.Create(context.Background(), &models.CreateRegisterRequest{
		DeviceID:     deviceID,
		RegisterType: registerType,
		Address:      address,
		Value:        value,
		MinValue:     min,
		MaxValue:     max,
		ReadOnly:     readOnly,
	})
	if err != nil {
		t.Fatalf("seed register %s/%d: %v", registerType, address, err)
	}
	return reg
}

func TestCreateDeviceRequiresAuth(t *testing.T) {
	t.Parallel()

	reg, _, _, _ := newTestRegistry(t)
	_, err := reg.CreateDevice(context.Background(), "Bearer bad", models.CreateDeviceRequest{
		DeviceID: "dev1", SlaveID: "12", DeviceName: "Pump",
	})
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("kind = %v, want unauthenticated", apperr.KindOf(err))
	}
}

func TestCreateDeviceSlaveIDValidation(t *testing.T) {
	t.Parallel()

	reg, _, _, _ := newTestRegistry(t)
	for _, slaveID := range []string{"abc", "0", "248", "-5", "12.5", ""} {
		_, err := reg.CreateDevice(context.Background(), goodHeader, models.CreateDeviceRequest{
			DeviceID: "dev1", SlaveID: slaveID, DeviceName: "Pump",
		})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("slave_id %q kind = %v, want validation", slaveID, apperr.KindOf(err))
		}
	}
}

func TestCreateDeviceReturnsPersistedRow(t *testing.T) {
	t.Parallel()

	reg, _, _, _ := newTestRegistry(t)
	device, err := reg.CreateDevice(context.Background(), goodHeader, models.CreateDeviceRequest{
		DeviceID: "dev1", SlaveID: "12", DeviceName: "Pump",
	})
	if err != nil {
		t.Fatalf("CreateDevice error: %v", err)
	}
	if device.ID == 0 {
		t.Fatalf("device id not assigned by store")
	}
	if device.SlaveID != 12 {
		t.Fatalf("slave_id = %d, want 12", device.SlaveID)
	}
	if device.Status != models.DeviceOffline {
		t.Fatalf("default status = %s, want %s", device.Status, models.DeviceOffline)
	}
}

func TestCreateDeviceDuplicateKey(t *testing.T) {
	t.Parallel()

	reg, devices, _, _ := newTestRegistry(t)
	seedDevice(t, devices, "dev1")

	_, err := reg.CreateDevice(context.Background(), goodHeader, models.CreateDeviceRequest{
		DeviceID: "dev1", SlaveID: "3", DeviceName: "Other",
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want conflict", apperr.KindOf(err))
	}
}

func TestReadRegisterLogsReadWithNoDelta(t *testing.T) {
	t.Parallel()

	reg, devices, registers, history := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterHolding, 10, 5, 0, 100, false)

	got, err := reg.ReadRegister(context.Background(), goodHeader, d.ID, models.RegisterHolding, 10)
	if err != nil {
		t.Fatalf("ReadRegister error: %v", err)
	}
	if got.Value != 5 {
		t.Fatalf("value = %d, want 5", got.Value)
	}

	entries := history.all()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != models.ActionRead || e.OldValue != 5 || e.NewValue != 5 || e.UserID != 7 {
		t.Fatalf("audit entry = %+v, want READ old=new=5 user=7", e)
	}
}

func TestWriteReadOnlyRegisterForbidden(t *testing.T) {
	t.Parallel()

	reg, devices, registers, _ := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterHolding, 10, 5, 0, 100, true)

	for _, value := range []int{5, 50, 0} {
		_, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
			DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 10, Value: value,
		})
		if apperr.KindOf(err) != apperr.KindForbidden {
			t.Fatalf("write %d to read-only kind = %v, want forbidden", value, apperr.KindOf(err))
		}
	}
}

func TestWriteInputClassesForbiddenEvenWhenWritable(t *testing.T) {
	t.Parallel()

	reg, devices, registers, _ := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterInput, 1, 0, 0, 100, false)
	seedRegister(t, registers, d.ID, models.RegisterDiscreteInput, 2, 0, 0, 1, false)

	for _, tc := range []struct {
		registerType string
		address      int
	}{
		{models.RegisterInput, 1},
		{models.RegisterDiscreteInput, 2},
	} {
		_, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
			DeviceID: d.ID, RegisterType: tc.registerType, Address: tc.address, Value: 1,
		})
		if apperr.KindOf(err) != apperr.KindForbidden {
			t.Fatalf("write to %s kind = %v, want forbidden", tc.registerType, apperr.KindOf(err))
		}
	}
}

func TestWriteOutOfRangeLeavesValueUnchanged(t *testing.T) {
	t.Parallel()

	reg, devices, registers, history := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterHolding, 10, 5, 0, 100, false)

	_, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
		DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 10, Value: 150,
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want validation", apperr.KindOf(err))
	}
	if !strings.Contains(apperr.Message(err), "[0, 100]") {
		t.Fatalf("message %q should name the bounds", apperr.Message(err))
	}
	if v := registers.value(d.ID, models.RegisterHolding, 10); v != 5 {
		t.Fatalf("stored value = %d, want unchanged 5", v)
	}
	if len(history.all()) != 0 {
		t.Fatalf("failed write must not be audited")
	}
}

func TestWriteUpdatesValueAndAudits(t *testing.T) {
	t.Parallel()

	reg, devices, registers, history := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterHolding, 10, 5, 0, 100, false)

	status, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
		DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 10, Value: 50,
	})
	if err != nil {
		t.Fatalf("WriteRegister error: %v", err)
	}
	if status.Status != "success" {
		t.Fatalf("status = %s, want success", status.Status)
	}
	if v := registers.value(d.ID, models.RegisterHolding, 10); v != 50 {
		t.Fatalf("stored value = %d, want 50", v)
	}

	entries := history.all()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != models.ActionWrite || e.OldValue != 5 || e.NewValue != 50 {
		t.Fatalf("audit entry = %+v, want WRITE old=5 new=50", e)
	}
}

func TestWriteVanishedRegisterNotFoundAndNotAudited(t *testing.T) {
	t.Parallel()

	reg, devices, registers, history := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterHolding, 10, 5, 0, 100, false)

	// Row deleted between the access check and the update.
	registers.updateErr = store.ErrNotFound

	_, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
		DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 10, Value: 50,
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not_found", apperr.KindOf(err))
	}
	if len(history.all()) != 0 {
		t.Fatalf("a write that never landed must not be audited")
	}
}

func TestWriteUnknownRegisterNotFound(t *testing.T) {
	t.Parallel()

	reg, devices, _, _ := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")

	_, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
		DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 99, Value: 1,
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestAuditFailureNeverFailsTheOperation(t *testing.T) {
	t.Parallel()

	reg, devices, registers, history := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterHolding, 10, 5, 0, 100, false)
	history.appendErr = context.DeadlineExceeded

	if _, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
		DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 10, Value: 50,
	}); err != nil {
		t.Fatalf("write should succeed despite audit failure: %v", err)
	}
	if v := registers.value(d.ID, models.RegisterHolding, 10); v != 50 {
		t.Fatalf("stored value = %d, want 50", v)
	}

	if _, err := reg.ReadRegister(context.Background(), goodHeader, d.ID, models.RegisterHolding, 10); err != nil {
		t.Fatalf("read should succeed despite audit failure: %v", err)
	}
}

func TestUpdateDeviceStatusValidation(t *testing.T) {
	t.Parallel()

	reg, devices, _, _ := newTestRegistry(t)
	seedDevice(t, devices, "dev1")

	_, err := reg.UpdateDeviceStatus(context.Background(), goodHeader, "dev1", "SLEEPING")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %v, want validation", apperr.KindOf(err))
	}
}

func TestUpdateDeviceStatusOnlineRefreshesLastSeen(t *testing.T) {
	t.Parallel()

	reg, devices, _, _ := newTestRegistry(t)
	seedDevice(t, devices, "dev1")

	if _, err := reg.UpdateDeviceStatus(context.Background(), goodHeader, "dev1", models.DeviceOnline); err != nil {
		t.Fatalf("UpdateDeviceStatus error: %v", err)
	}
	d, _ := devices.GetByDeviceID(context.Background(), "dev1")
	if d.Status != models.DeviceOnline {
		t.Fatalf("status = %s, want ONLINE", d.Status)
	}
	if d.LastSeen == nil {
		t.Fatalf("last_seen should be refreshed on ONLINE transition")
	}

	seen := *d.LastSeen
	if _, err := reg.UpdateDeviceStatus(context.Background(), goodHeader, "dev1", models.DeviceError); err != nil {
		t.Fatalf("UpdateDeviceStatus error: %v", err)
	}
	d, _ = devices.GetByDeviceID(context.Background(), "dev1")
	if d.Status != models.DeviceError {
		t.Fatalf("status = %s, want ERROR", d.Status)
	}
	if d.LastSeen == nil || !d.LastSeen.Equal(seen) {
		t.Fatalf("last_seen must not change on non-ONLINE transition")
	}
}

func TestGetDeviceStatusOutcomes(t *testing.T) {
	t.Parallel()

	reg, devices, _, _ := newTestRegistry(t)
	seedDevice(t, devices, "dev1")

	// Stored status is OFFLINE by default.
	status, err := reg.GetDeviceStatus(context.Background(), goodHeader, "dev1")
	if err != nil {
		t.Fatalf("GetDeviceStatus error: %v", err)
	}
	if status.Status != "warning" || !strings.Contains(status.Message, models.DeviceOffline) {
		t.Fatalf("offline outcome = %+v, want warning naming OFFLINE", status)
	}

	// Fresh ONLINE device is healthy.
	if _, err := reg.UpdateDeviceStatus(context.Background(), goodHeader, "dev1", models.DeviceOnline); err != nil {
		t.Fatalf("UpdateDeviceStatus error: %v", err)
	}
	status, err = reg.GetDeviceStatus(context.Background(), goodHeader, "dev1")
	if err != nil {
		t.Fatalf("GetDeviceStatus error: %v", err)
	}
	if status.Status != "success" {
		t.Fatalf("fresh outcome = %+v, want success", status)
	}

	// Stale ONLINE device warns with the elapsed seconds.
	reg.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	status, err = reg.GetDeviceStatus(context.Background(), goodHeader, "dev1")
	if err != nil {
		t.Fatalf("GetDeviceStatus error: %v", err)
	}
	if status.Status != "warning" || !strings.Contains(status.Message, "inactive for") {
		t.Fatalf("stale outcome = %+v, want inactivity warning", status)
	}
}

func TestUpdateDeviceNetworkPortBounds(t *testing.T) {
	t.Parallel()

	reg, devices, _, _ := newTestRegistry(t)
	seedDevice(t, devices, "dev1")

	for _, port := range []int{0, -1, 65536} {
		_, err := reg.UpdateDeviceNetwork(context.Background(), goodHeader, "dev1", models.UpdateNetworkRequest{
			IPAddress: "10.0.0.2", Port: port,
		})
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("port %d kind = %v, want validation", port, apperr.KindOf(err))
		}
	}

	if _, err := reg.UpdateDeviceNetwork(context.Background(), goodHeader, "dev1", models.UpdateNetworkRequest{
		IPAddress: "10.0.0.2", Port: 502,
	}); err != nil {
		t.Fatalf("UpdateDeviceNetwork error: %v", err)
	}
	d, _ := devices.GetByDeviceID(context.Background(), "dev1")
	if d.IPAddress == nil || *d.IPAddress != "10.0.0.2" || d.Port == nil || *d.Port != 502 {
		t.Fatalf("network not persisted: %+v", d)
	}
}

func TestCreateRegisterValidation(t *testing.T) {
	t.Parallel()

	reg, devices, _, _ := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")

	_, err := reg.CreateRegister(context.Background(), goodHeader, models.CreateRegisterRequest{
		DeviceID: d.ID, RegisterType: "BOGUS", Address: 1,
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("bad type kind = %v, want validation", apperr.KindOf(err))
	}

	_, err = reg.CreateRegister(context.Background(), goodHeader, models.CreateRegisterRequest{
		DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 1, MinValue: 10, MaxValue: 5, Value: 10, DefaultValue: 10,
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("inverted bounds kind = %v, want validation", apperr.KindOf(err))
	}

	_, err = reg.CreateRegister(context.Background(), goodHeader, models.CreateRegisterRequest{
		DeviceID: 999, RegisterType: models.RegisterHolding, Address: 1, MaxValue: 100,
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("unknown device kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestRegisterHistoryReturnsRecentEntries(t *testing.T) {
	t.Parallel()

	reg, devices, registers, _ := newTestRegistry(t)
	d := seedDevice(t, devices, "dev1")
	seedRegister(t, registers, d.ID, models.RegisterHolding, 10, 5, 0, 100, false)

	for _, v := range []int{10, 20, 30} {
		if _, err := reg.WriteRegister(context.Background(), goodHeader, models.WriteRegisterRequest{
			DeviceID: d.ID, RegisterType: models.RegisterHolding, Address: 10, Value: v,
		}); err != nil {
			t.Fatalf("WriteRegister(%d) error: %v", v, err)
		}
	}

	entries, err := reg.RegisterHistory(context.Background(), goodHeader, d.ID, models.RegisterHolding, 10, 2)
	if err != nil {
		t.Fatalf("RegisterHistory error: %v", err)
	}
	// Most recent first, capped at the requested limit.
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].NewValue != 30 || entries[1].NewValue != 20 {
		t.Fatalf("entries out of order: %+v", entries)
	}
}
