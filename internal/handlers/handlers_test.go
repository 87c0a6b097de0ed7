package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/database"
	"github.com/openmic/backend/internal/models"
	"github.com/openmic/backend/internal/services"
	"github.com/openmic/backend/internal/store"
)

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{services.ErrInvalidTransition, http.StatusConflict},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrAlreadyRegistered, http.StatusConflict},
		{services.ErrCapacityExhausted, http.StatusServiceUnavailable},
		{services.ErrUpstreamUnavailable, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			// Wrapping must not break the mapping.
			writeServiceError(context.Background(), rec, fmt.Errorf("%w: details", tt.err))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if resp.Error == "" {
				t.Error("error body has no message")
			}
		})
	}
}

func newTestQueue(t *testing.T) (*services.QueueService, string) {
	t.Helper()
	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	st := store.New(db)
	host := store.Host{ID: "host-1", Email: "host@example.com", PasswordHash: "x"}
	if err := st.CreateHost(ctx, host); err != nil {
		t.Fatalf("failed to create host: %v", err)
	}
	room := store.Room{ID: "room-1", Code: "1234", HostID: host.ID}
	if err := st.CreateRoom(ctx, room); err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	return services.NewQueueService(st, broker.New(), true), room.Code
}

func submitRequest(t *testing.T, handler *SongHandler, code string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/rooms/"+code+"/songs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("code", code)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	handler.Submit(rec, req)
	return rec
}

func TestSubmitValidation(t *testing.T) {
	queue, code := newTestQueue(t)
	handler := NewSongHandler(queue)

	marshal := func(req models.SubmitSongRequest) []byte {
		body, _ := json.Marshal(req)
		return body
	}

	tests := []struct {
		name   string
		body   []byte
		status int
	}{
		{"invalid json", []byte("not json"), http.StatusBadRequest},
		{"missing track id", marshal(models.SubmitSongRequest{Title: "Song"}), http.StatusBadRequest},
		{"missing title", marshal(models.SubmitSongRequest{ExternalTrackID: "t1"}), http.StatusBadRequest},
		{"bad mode", marshal(models.SubmitSongRequest{ExternalTrackID: "t1", Title: "Song", Mode: "anonymous"}), http.StatusBadRequest},
		{"valid guest default", marshal(models.SubmitSongRequest{ExternalTrackID: "t1", Title: "Song"}), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := submitRequest(t, handler, code, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestVoteRequiresSessionTokenHeader(t *testing.T) {
	queue, _ := newTestQueue(t)
	handler := NewSongHandler(queue)

	req := httptest.NewRequest(http.MethodPost, "/api/songs/song-1/vote", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "song-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	handler.Vote(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
