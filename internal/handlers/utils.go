// Package handlers implements the HTTP boundary: request decoding, service
// error mapping, and response encoding.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openmic/backend/internal/logging"
	"github.com/openmic/backend/internal/models"
	"github.com/openmic/backend/internal/services"
	"github.com/openmic/backend/internal/store"
)

// writeJSON serializes data as JSON and writes it to the response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a simple client error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// writeErrorWithCause writes an error response and logs the error with stack trace.
// Use this for server errors where you have an underlying error to log.
func writeErrorWithCause(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	writeError(w, status, message)

	// Don't log 401/403 - handled by security event logging
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return
	}

	if status >= 400 && err != nil {
		wrappedErr := logging.WrapError(err, message)
		logging.LogErrorWithStatus(ctx, status, "error response", wrappedErr)
	}
}

// writeServiceError maps a service error kind to its HTTP status. Unknown
// errors are reported as 500 and logged with their cause.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrCapacityExhausted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, services.ErrUpstreamUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeErrorWithCause(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

// songToResponse converts a stored song to its API view.
func songToResponse(song store.Song) models.SongResponse {
	return models.SongResponse{
		ID:              song.ID,
		ExternalTrackID: song.ExternalTrackID,
		Title:           song.Title,
		ThumbnailURL:    song.ThumbnailURL,
		ExternalURL:     song.ExternalURL,
		SubmitterLabel:  song.SubmitterLabel,
		Status:          song.Status,
		VoteCount:       song.VoteCount,
		RequestedAt:     song.RequestedAt,
	}
}
