package service

import (
	"context"
	"log/slog"

	"modbus-registry-api/apperr"
	"modbus-registry-api/models"
)

// BatchCoordinator composes single-register operations into batch calls.
// The partial-failure contract: a per-item NotFound is skipped with a
// warning; any other failure aborts the whole batch immediately.
type BatchCoordinator struct {
	registry *RegistryService
}

func NewBatchCoordinator(registry *RegistryService) *BatchCoordinator {
	return &BatchCoordinator{registry: registry}
}

// ReadBatch reads the given addresses in input order, authenticating once
// and validating the device once. Missing registers are omitted from the
// result. A batch where every address was missing fails NotFound.
func (b *BatchCoordinator) ReadBatch(ctx context.Context, authHeader string, req models.BatchReadRequest) ([]models.Register, error) {
	user, err := b.registry.auth.ValidateToken(ctx, authHeader)
	if err != nil {
		return nil, err
	}
	if err := b.registry.requireDeviceExists(ctx, req.DeviceID); err != nil {
		return nil, err
	}

	registers := []models.Register{}
	for _, address := range req.Addresses {
		reg, err := b.registry.readRegisterAs(ctx, user, req.DeviceID, req.RegisterType, address)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				slog.Warn("register not found in batch read",
					slog.Int64("device_id", req.DeviceID),
					slog.String("type", req.RegisterType),
					slog.Int("address", address))
				continue
			}
			return nil, err
		}
		registers = append(registers, *reg)
	}

	if len(registers) == 0 {
		return nil, apperr.NotFound("no valid registers found in batch")
	}
	return registers, nil
}

// WriteBatch applies the writes in input order, authenticating once. Missing
// registers are skipped. Unlike ReadBatch, a batch where every item was
// skipped still reports success.
func (b *BatchCoordinator) WriteBatch(ctx context.Context, authHeader string, req models.BatchWriteRequest) (models.StatusResponse, error) {
	user, err := b.registry.auth.ValidateToken(ctx, authHeader)
	if err != nil {
		return models.StatusResponse{}, err
	}

	for _, item := range req.Registers {
		if _, err := b.registry.writeRegisterAs(ctx, user, item); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				slog.Warn("register not found in batch write",
					slog.Int64("device_id", item.DeviceID),
					slog.String("type", item.RegisterType),
					slog.Int("address", item.Address))
				continue
			}
			return models.StatusResponse{}, err
		}
	}

	return models.StatusSuccess("Registers updated successfully"), nil
}
