package handlers

import (
	"encoding/json"
	"net/http"

	"modbus-registry-api/models"
	"modbus-registry-api/service"
	"modbus-registry-api/utils"
)

type DeviceHandler struct {
	Registry *service.RegistryService
}

func NewDeviceHandler(registry *service.RegistryService) *DeviceHandler {
	return &DeviceHandler{Registry: registry}
}

// Create registers a new device.
func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ValidationErrorMessage(err))
		return
	}

	device, err := h.Registry.CreateDevice(r.Context(), r.Header.Get("Authorization"), req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, device)
}

// List returns all registered devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.Registry.ListDevices(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, devices)
}

// Get returns one device by its string key.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	device, err := h.Registry.GetDevice(r.Context(), r.Header.Get("Authorization"), r.PathValue("deviceID"))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, device)
}

// GetStatus runs the liveness check; warnings travel on a 200.
func (h *DeviceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Registry.GetDeviceStatus(r.Context(), r.Header.Get("Authorization"), r.PathValue("deviceID"))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}

// UpdateStatus sets the stored device status from the path.
func (h *DeviceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Registry.UpdateDeviceStatus(r.Context(), r.Header.Get("Authorization"),
		r.PathValue("deviceID"), r.PathValue("status"))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}

// UpdateNetwork updates a device's IP address and port.
func (h *DeviceHandler) UpdateNetwork(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateNetworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ValidationErrorMessage(err))
		return
	}

	status, err := h.Registry.UpdateDeviceNetwork(r.Context(), r.Header.Get("Authorization"),
		r.PathValue("deviceID"), req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}
