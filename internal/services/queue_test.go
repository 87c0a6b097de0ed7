package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/store"
)

type queueEnv struct {
	queue  *QueueService
	rooms  *RoomService
	store  *store.Store
	broker *broker.Broker
	host   store.Host
	room   store.Room
}

func newQueueEnv(t *testing.T, allowApprovedReject bool) *queueEnv {
	t.Helper()
	ctx := context.Background()
	s := newTestStore(t)
	b := newTestBroker(t)

	host := registerTestHost(t, s, "host@example.com")
	rooms := NewRoomService(s, b, true)
	room, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	return &queueEnv{
		queue:  NewQueueService(s, b, allowApprovedReject),
		rooms:  rooms,
		store:  s,
		broker: b,
		host:   host,
		room:   room,
	}
}

var testTrack = Track{
	ExternalID:   "track-1",
	Title:        "Bohemian Rhapsody",
	ThumbnailURL: "https://img.example.com/track-1.jpg",
	ExternalURL:  "https://music.example.com/track-1",
}

func TestRequestSong(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	song, err := env.queue.Request(ctx, env.room.Code, testTrack, "Alice", ModeNamed)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if song.Status != store.StatusPending {
		t.Errorf("new request status = %q, want pending", song.Status)
	}
	if song.VoteCount != 0 {
		t.Errorf("new request vote count = %d, want 0", song.VoteCount)
	}
	if song.SubmitterLabel != "Alice" {
		t.Errorf("submitter label = %q, want Alice", song.SubmitterLabel)
	}
}

func TestRequestSongUnknownRoom(t *testing.T) {
	env := newQueueEnv(t, true)
	_, err := env.queue.Request(context.Background(), "9999", testTrack, "", ModeGuest)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestSongSubmitterLabels(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	tests := []struct {
		name  string
		input string
		mode  string
		want  string
	}{
		{"guest mode ignores name", "Alice", ModeGuest, "Guest"},
		{"named mode keeps name", "Alice", ModeNamed, "Alice"},
		{"named mode trims whitespace", "  Bob  ", ModeNamed, "Bob"},
		{"blank named falls back to guest label", "   ", ModeNamed, "Guest"},
		{"overlong name is truncated", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaZZZ", ModeNamed, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"overlong multi-byte name is cut on a rune boundary", strings.Repeat("é", 43), ModeNamed, strings.Repeat("é", 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song, err := env.queue.Request(ctx, env.room.Code, testTrack, tt.input, tt.mode)
			if err != nil {
				t.Fatalf("Request: %v", err)
			}
			if song.SubmitterLabel != tt.want {
				t.Errorf("label = %q, want %q", song.SubmitterLabel, tt.want)
			}
		})
	}
}

func TestVoteIdempotentPerToken(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	ch := env.broker.Subscribe(env.room.Code)

	voted, err := env.queue.Vote(ctx, song.ID, "token-a")
	if err != nil {
		t.Fatalf("first Vote: %v", err)
	}
	if voted.VoteCount != 1 {
		t.Errorf("vote count after first vote = %d, want 1", voted.VoteCount)
	}

	// The same token voting again changes nothing and stays silent.
	voted, err = env.queue.Vote(ctx, song.ID, "token-a")
	if err != nil {
		t.Fatalf("repeat Vote: %v", err)
	}
	if voted.VoteCount != 1 {
		t.Errorf("vote count after repeat vote = %d, want 1", voted.VoteCount)
	}

	voted, err = env.queue.Vote(ctx, song.ID, "token-b")
	if err != nil {
		t.Fatalf("second token Vote: %v", err)
	}
	if voted.VoteCount != 2 {
		t.Errorf("vote count after second token = %d, want 2", voted.VoteCount)
	}

	// Exactly two song_voted events: one per distinct token.
	votedEvents := 0
	for len(ch) > 0 {
		if ev := <-ch; ev.Kind == broker.KindSongVoted {
			votedEvents++
		}
	}
	if votedEvents != 2 {
		t.Errorf("song_voted events = %d, want 2", votedEvents)
	}
}

func TestVoteRequiresToken(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := env.queue.Vote(ctx, song.ID, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVoteUnknownSong(t *testing.T) {
	env := newQueueEnv(t, true)
	_, err := env.queue.Vote(context.Background(), "no-such-song", "token-a")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	if _, err := env.queue.Vote(ctx, song.ID, "token-a"); err != nil {
		t.Fatalf("vote on pending: %v", err)
	}

	song, err = env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if song.Status != store.StatusApproved {
		t.Errorf("status = %q, want approved", song.Status)
	}

	// Approved songs still accept votes.
	if _, err := env.queue.Vote(ctx, song.ID, "token-b"); err != nil {
		t.Fatalf("vote on approved: %v", err)
	}

	song, err = env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusPlayed)
	if err != nil {
		t.Fatalf("mark played: %v", err)
	}
	if song.Status != store.StatusPlayed {
		t.Errorf("status = %q, want played", song.Status)
	}

	// Played is terminal: no votes, no further transitions.
	if _, err := env.queue.Vote(ctx, song.ID, "token-c"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("vote on played: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusApproved); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("re-approve played: expected ErrInvalidTransition, got %v", err)
	}
}

func TestIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	tests := []struct {
		name   string
		setup  []string // transitions applied first
		target string
	}{
		{"pending to played", nil, store.StatusPlayed},
		{"rejected to approved", []string{store.StatusRejected}, store.StatusApproved},
		{"rejected to played", []string{store.StatusRejected}, store.StatusPlayed},
		{"rejected to rejected", []string{store.StatusRejected}, store.StatusRejected},
		{"unknown target", nil, "pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
			if err != nil {
				t.Fatalf("Request: %v", err)
			}
			for _, status := range tt.setup {
				if _, err := env.queue.SetStatus(ctx, song.ID, env.host.ID, status); err != nil {
					t.Fatalf("setup transition to %s: %v", status, err)
				}
			}
			if _, err := env.queue.SetStatus(ctx, song.ID, env.host.ID, tt.target); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestApprovedRejectPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("allowed", func(t *testing.T) {
		env := newQueueEnv(t, true)
		song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
		if err != nil {
			t.Fatalf("Request: %v", err)
		}
		if _, err := env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusApproved); err != nil {
			t.Fatalf("approve: %v", err)
		}
		song, err = env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusRejected)
		if err != nil {
			t.Fatalf("reject approved: %v", err)
		}
		if song.Status != store.StatusRejected {
			t.Errorf("status = %q, want rejected", song.Status)
		}
	})

	t.Run("disallowed", func(t *testing.T) {
		env := newQueueEnv(t, false)
		song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
		if err != nil {
			t.Fatalf("Request: %v", err)
		}
		if _, err := env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusApproved); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if _, err := env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusRejected); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestSetStatusNotOwner(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)
	other := registerTestHost(t, env.store, "other@example.com")

	song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := env.queue.SetStatus(ctx, song.ID, other.ID, store.StatusApproved); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestSetStatusClosedRoom(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	song, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := env.rooms.Close(ctx, env.room.Code, env.host.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := env.queue.SetStatus(ctx, song.ID, env.host.ID, store.StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for song in closed room, got %v", err)
	}
}

func TestListFiltersRejectedForAttendees(t *testing.T) {
	ctx := context.Background()
	env := newQueueEnv(t, true)

	kept, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	rejected, err := env.queue.Request(ctx, env.room.Code, testTrack, "", ModeGuest)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := env.queue.SetStatus(ctx, rejected.ID, env.host.ID, store.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	attendeeView, err := env.queue.List(ctx, env.room.Code, "")
	if err != nil {
		t.Fatalf("List (attendee): %v", err)
	}
	if len(attendeeView) != 1 || attendeeView[0].ID != kept.ID {
		t.Errorf("attendee view = %d songs, want only the non-rejected one", len(attendeeView))
	}

	hostView, err := env.queue.List(ctx, env.room.Code, env.host.ID)
	if err != nil {
		t.Fatalf("List (owner): %v", err)
	}
	if len(hostView) != 2 {
		t.Errorf("owner view = %d songs, want 2 including the rejected one", len(hostView))
	}

	// A host who does not own this room gets the attendee view.
	foreign := registerTestHost(t, env.store, "foreign@example.com")
	foreignView, err := env.queue.List(ctx, env.room.Code, foreign.ID)
	if err != nil {
		t.Fatalf("List (foreign host): %v", err)
	}
	if len(foreignView) != 1 {
		t.Errorf("foreign host view = %d songs, want 1 without the rejected one", len(foreignView))
	}
}

func TestListUnknownRoom(t *testing.T) {
	env := newQueueEnv(t, true)
	_, err := env.queue.List(context.Background(), "9999", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
