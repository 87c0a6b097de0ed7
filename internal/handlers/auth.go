package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/openmic/backend/internal/logging"
	"github.com/openmic/backend/internal/models"
	"github.com/openmic/backend/internal/services"
)

// AuthHandler manages host registration and login.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates an AuthHandler backed by the given auth service.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register creates a host account and returns a signed token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	host, token, err := h.auth.Register(r.Context(), email, req.Password)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.AuthResponse{
		HostID: host.ID,
		Email:  host.Email,
		Token:  token,
	})
}

// Login verifies host credentials and returns a signed token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	host, token, err := h.auth.Login(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadCredentials, "failed host login")
		}
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AuthResponse{
		HostID: host.ID,
		Email:  host.Email,
		Token:  token,
	})
}
