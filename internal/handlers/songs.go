package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/openmic/backend/internal/logging"
	"github.com/openmic/backend/internal/middleware"
	"github.com/openmic/backend/internal/models"
	"github.com/openmic/backend/internal/services"
)

// sessionTokenHeader carries the attendee's anonymous per-room identity.
const sessionTokenHeader = "X-Session-Token"

// SongHandler manages the request queue: submission, listing, voting, and
// host moderation.
type SongHandler struct {
	queue *services.QueueService
}

// NewSongHandler creates a SongHandler backed by the queue engine.
func NewSongHandler(queue *services.QueueService) *SongHandler {
	return &SongHandler{queue: queue}
}

// List returns the room's songs. A host whose token matches the room's owner
// sees rejected items; everyone else gets the attendee view.
func (h *SongHandler) List(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	viewerHostID := ""
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		viewerHostID = claims.HostID
	}

	songs, err := h.queue.List(r.Context(), code, viewerHostID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	response := make([]models.SongResponse, len(songs))
	for i, song := range songs {
		response[i] = songToResponse(song)
	}
	writeJSON(w, http.StatusOK, response)
}

// Submit creates a new pending song request from a catalog track.
func (h *SongHandler) Submit(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req models.SubmitSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ExternalTrackID == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "externalTrackId and title are required")
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = services.ModeGuest
	}
	if mode != services.ModeNamed && mode != services.ModeGuest {
		writeError(w, http.StatusBadRequest, "mode must be 'named' or 'guest'")
		return
	}

	track := services.Track{
		ExternalID:   req.ExternalTrackID,
		Title:        req.Title,
		ThumbnailURL: req.ThumbnailURL,
		ExternalURL:  req.ExternalURL,
	}

	song, err := h.queue.Request(r.Context(), code, track, req.SubmitterName, mode)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, songToResponse(song))
}

// Vote records one vote per session token for a song. Repeat votes with the
// same token return the unchanged song.
func (h *SongHandler) Vote(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "id")

	token := strings.TrimSpace(r.Header.Get(sessionTokenHeader))
	if token == "" {
		writeError(w, http.StatusBadRequest, sessionTokenHeader+" header is required")
		return
	}

	song, err := h.queue.Vote(r.Context(), songID, token)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, songToResponse(song))
}

// SetStatus drives a host moderation transition: approve, reject, or played.
func (h *SongHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "id")
	claims := middleware.GetClaims(r.Context())

	var req models.SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	song, err := h.queue.SetStatus(r.Context(), songID, claims.HostID, req.Status)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			logging.LogSecurityEvent(r.Context(), logging.SecurityEventNotOwner, "status change attempt by non-owner")
		}
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, songToResponse(song))
}
