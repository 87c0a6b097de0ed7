// Package syncer implements the participant-side view of a room: it
// subscribes to the room's change-event stream and reconciles by re-fetching
// the full song list on every signal. Events carry no payload, so the local
// view is always replaced wholesale from authoritative state; missed or
// reordered events cost at most one redundant fetch, never divergence.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmic/backend/internal/models"
)

// Event kinds as they appear on the SSE wire.
const (
	EventConnected         = "connected"
	EventSongRequested     = "song_requested"
	EventSongVoted         = "song_voted"
	EventSongStatusChanged = "song_status_changed"
	EventRoomClosed        = "room_closed"
)

// SongLister fetches the authoritative song list for a room.
type SongLister interface {
	ListSongs(ctx context.Context, code string) ([]models.SongResponse, error)
}

// Stream delivers event kind names for one room. The channel closing is a
// terminal signal equivalent to room_closed.
type Stream interface {
	Events() <-chan string
	Close() error
}

// Synchronizer keeps one participant's local view of a room's queue
// converged with the server.
type Synchronizer struct {
	code   string
	lister SongLister
	stream Stream

	// OnUpdate receives each freshly fetched song list, replacing any
	// previous view.
	OnUpdate func([]models.SongResponse)

	// OnClosed is called once when the room closes or the stream ends.
	OnClosed func()
}

// New creates a Synchronizer for the given room code.
func New(code string, lister SongLister, stream Stream, onUpdate func([]models.SongResponse), onClosed func()) *Synchronizer {
	return &Synchronizer{
		code:     code,
		lister:   lister,
		stream:   stream,
		OnUpdate: onUpdate,
		OnClosed: onClosed,
	}
}

// Run performs the initial full fetch, then reconciles on every event until
// the context is cancelled or the room closes. The initial fetch failing is
// a hard error (the caller never had a valid view); refetch failures after
// that are transient and recovered by the next event.
func (s *Synchronizer) Run(ctx context.Context) error {
	defer s.stream.Close()

	songs, err := s.lister.ListSongs(ctx, s.code)
	if err != nil {
		return fmt.Errorf("initial fetch failed: %w", err)
	}
	s.OnUpdate(songs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case kind, open := <-s.stream.Events():
			if !open || kind == EventRoomClosed {
				s.OnClosed()
				return nil
			}
			if kind == EventConnected {
				continue
			}

			songs, err := s.lister.ListSongs(ctx, s.code)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Transient: the next event triggers another fetch, and the
				// view stays on its last good state until then.
				slog.Warn("refetch failed, keeping stale view",
					slog.String("room", s.code),
					slog.String("error", err.Error()))
				continue
			}
			s.OnUpdate(songs)
		}
	}
}
