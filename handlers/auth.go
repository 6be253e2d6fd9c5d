package handlers

import (
	"encoding/json"
	"net/http"

	"modbus-registry-api/models"
	"modbus-registry-api/service"
	"modbus-registry-api/utils"
)

type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// SignUp creates a new account.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ValidationErrorMessage(err))
		return
	}

	status, err := h.Auth.SignUp(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, status)
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, token)
}

// Validate echoes the user behind the presented token.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.ValidateToken(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		utils.WriteAppError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, models.UserResponse{
		ID:       user.ID,
		Username: user.Username,
	})
}
