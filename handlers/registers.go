package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"modbus-registry-api/apperr"
	"modbus-registry-api/metrics"
	"modbus-registry-api/models"
	"modbus-registry-api/service"
	"modbus-registry-api/utils"
)

type RegisterHandler struct {
	Registry *service.RegistryService
	Batch    *service.BatchCoordinator
}

func NewRegisterHandler(registry *service.RegistryService, batch *service.BatchCoordinator) *RegisterHandler {
	return &RegisterHandler{Registry: registry, Batch: batch}
}

func pathInt64(r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return n, err == nil
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	return n, err == nil
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return apperr.KindOf(err).String()
}

// Create declares a register slot on a device.
func (h *RegisterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ValidationErrorMessage(err))
		return
	}

	reg, err := h.Registry.CreateRegister(r.Context(), r.Header.Get("Authorization"), req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, reg)
}

// Read returns a single register addressed by path.
func (h *RegisterHandler) Read(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathInt64(r, "deviceID")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	address, ok := pathInt(r, "address")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid address")
		return
	}

	reg, err := h.Registry.ReadRegister(r.Context(), r.Header.Get("Authorization"),
		deviceID, r.PathValue("type"), address)
	metrics.RegisterRead(resultLabel(err))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, reg)
}

// Write applies a single register write.
func (h *RegisterHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req models.WriteRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ValidationErrorMessage(err))
		return
	}

	status, err := h.Registry.WriteRegister(r.Context(), r.Header.Get("Authorization"), req)
	metrics.RegisterWrite(resultLabel(err))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}

// ListForDevice returns every register declared on one device.
func (h *RegisterHandler) ListForDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathInt64(r, "deviceID")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	registers, err := h.Registry.ListDeviceRegisters(r.Context(), r.Header.Get("Authorization"), deviceID)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, registers)
}

// History returns the most recent audit entries for one register.
func (h *RegisterHandler) History(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := pathInt64(r, "deviceID")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid device id")
		return
	}
	address, ok := pathInt(r, "address")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "invalid address")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Registry.RegisterHistory(r.Context(), r.Header.Get("Authorization"),
		deviceID, r.PathValue("type"), address, limit)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, entries)
}

// ReadBatch reads several addresses in one call, skipping missing registers.
func (h *RegisterHandler) ReadBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ValidationErrorMessage(err))
		return
	}

	registers, err := h.Batch.ReadBatch(r.Context(), r.Header.Get("Authorization"), req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, registers)
}

// WriteBatch applies several writes in one call, skipping missing registers.
func (h *RegisterHandler) WriteBatch(w http.ResponseWriter, r *http.Request) {
	var req models.BatchWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ValidationErrorMessage(err))
		return
	}

	status, err := h.Batch.WriteBatch(r.Context(), r.Header.Get("Authorization"), req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}
