package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openmic/backend/internal/logging"
	"github.com/openmic/backend/internal/middleware"
	"github.com/openmic/backend/internal/models"
	"github.com/openmic/backend/internal/services"
)

// RoomHandler manages room lifecycle: creation, lookup by code, and closing.
type RoomHandler struct {
	rooms  *services.RoomService
	guests *services.GuestNameService
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(rooms *services.RoomService, guests *services.GuestNameService) *RoomHandler {
	return &RoomHandler{rooms: rooms, guests: guests}
}

// Create opens a new room owned by the authenticated host.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	room, err := h.rooms.Create(r.Context(), claims.HostID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.RoomResponse{
		Code:      room.Code,
		HostEmail: room.HostEmail,
		CreatedAt: room.CreatedAt,
	})
}

// Get resolves a room code for a joining participant. The response includes
// a suggested attendee nickname.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	room, err := h.rooms.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadRoomCode, "join attempt with unknown room code")
		}
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.RoomResponse{
		Code:          room.Code,
		HostEmail:     room.HostEmail,
		CreatedAt:     room.CreatedAt,
		SuggestedName: h.guests.Generate(),
	})
}

// Close shuts the room down, evicting all connected participants.
func (h *RoomHandler) Close(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	claims := middleware.GetClaims(r.Context())

	if err := h.rooms.Close(r.Context(), code, claims.HostID); err != nil {
		if errors.Is(err, services.ErrForbidden) {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventNotOwner, "close attempt by non-owner")
		}
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
