package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/services"
)

// SSEHandler serves Server-Sent Events streams carrying queue change signals.
type SSEHandler struct {
	broker *broker.Broker
	rooms  *services.RoomService
}

// NewSSEHandler creates an SSEHandler backed by the given broker and registry.
func NewSSEHandler(b *broker.Broker, rooms *services.RoomService) *SSEHandler {
	return &SSEHandler{broker: b, rooms: rooms}
}

// Stream opens an SSE connection scoped to a room. It sends an initial
// "connected" event, then pushes one event per queue change kind. Events
// carry no payload; clients re-fetch the song list on each one. A heartbeat
// comment is sent every 30 seconds to keep the connection alive through
// proxies. The stream ends after "room_closed".
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	// Reject unknown codes up front so a client with a stale code is not
	// left holding a silent stream.
	if _, err := h.rooms.Get(r.Context(), code); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := h.broker.Subscribe(code)
	defer h.broker.Unsubscribe(code, ch)

	// Send initial connected event
	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-ch:
			if !open || ev.Kind == broker.KindRoomClosed {
				// Terminal: surface eviction and stop. A closed channel
				// means the broker tore the room down even if the
				// room_closed event itself was dropped.
				fmt.Fprintf(w, "event: %s\ndata: closed\n\n", broker.KindRoomClosed)
				flusher.Flush()
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: refresh\n\n", ev.Kind)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
