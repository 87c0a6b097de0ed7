package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/store"
)

// Submitter modes for song requests.
const (
	ModeNamed = "named"
	ModeGuest = "guest"
)

// guestLabel is the fixed placeholder shown for guest-mode submissions.
const guestLabel = "Guest"

// maxLabelLen caps named-mode submitter labels.
const maxLabelLen = 40

// Track is the immutable descriptor copied from a catalog search result onto
// a song request at submission time.
type Track struct {
	ExternalID   string
	Title        string
	ThumbnailURL string
	ExternalURL  string
}

// QueueService is the queue engine: it owns songs-per-room, status
// transitions, and vote accounting. Every committed mutation is followed by a
// best-effort broadcast on the room's notification channel; publish failures
// never fail the mutation.
type QueueService struct {
	store  *store.Store
	broker *broker.Broker

	// allowApprovedReject permits the host "undo" edge Approved -> Rejected.
	allowApprovedReject bool
}

// NewQueueService creates a QueueService.
func NewQueueService(s *store.Store, b *broker.Broker, allowApprovedReject bool) *QueueService {
	return &QueueService{
		store:               s,
		broker:              b,
		allowApprovedReject: allowApprovedReject,
	}
}

// legalFrom returns the statuses a song may hold for a transition into
// target, or nil if target is not a legal transition target at all.
func (s *QueueService) legalFrom(target string) []string {
	switch target {
	case store.StatusApproved:
		return []string{store.StatusPending}
	case store.StatusPlayed:
		return []string{store.StatusApproved}
	case store.StatusRejected:
		if s.allowApprovedReject {
			return []string{store.StatusPending, store.StatusApproved}
		}
		return []string{store.StatusPending}
	default:
		return nil
	}
}

// Request creates a pending song request in the room identified by code.
// Fails with ErrNotFound if no open room holds the code.
func (s *QueueService) Request(ctx context.Context, code string, track Track, submitterName, mode string) (store.Song, error) {
	room, err := s.store.GetOpenRoomByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return store.Song{}, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return store.Song{}, fmt.Errorf("failed to look up room: %w", err)
	}

	label := guestLabel
	if mode == ModeNamed {
		label = strings.TrimSpace(submitterName)
		// Truncate by runes, not bytes, so a multi-byte name is never cut
		// mid-character.
		if runes := []rune(label); len(runes) > maxLabelLen {
			label = string(runes[:maxLabelLen])
		}
		if label == "" {
			label = guestLabel
		}
	}

	song := store.Song{
		ID:              uuid.New().String(),
		RoomID:          room.ID,
		ExternalTrackID: track.ExternalID,
		Title:           track.Title,
		ThumbnailURL:    track.ThumbnailURL,
		ExternalURL:     track.ExternalURL,
		SubmitterLabel:  label,
		Status:          store.StatusPending,
	}
	if err := s.store.CreateSong(ctx, song); err != nil {
		return store.Song{}, fmt.Errorf("failed to create song request: %w", err)
	}

	s.broker.Publish(code, broker.KindSongRequested)
	slog.Debug("song requested", slog.String("room", code), slog.String("song_id", song.ID))

	// Re-read so the caller sees store-assigned timestamps.
	return s.store.GetSongByID(ctx, song.ID)
}

// List returns the room's songs in creation order. Only the room's owning
// host sees rejected items; any other viewer, including a host of a different
// room, gets the attendee view. Grouping by status for display is the
// caller's concern.
func (s *QueueService) List(ctx context.Context, code, viewerHostID string) ([]store.Song, error) {
	room, err := s.store.GetOpenRoomByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up room: %w", err)
	}

	asOwner := viewerHostID != "" && viewerHostID == room.HostID
	return s.store.ListSongsByRoom(ctx, room.ID, asOwner)
}

// Vote adds the session token to the song's voter set and increments its
// count. Voting again with the same token is an idempotent no-op that returns
// the current song unchanged; only a first vote broadcasts. The store checks
// the song's status inside the vote transaction, so a vote racing a
// concurrent transition to Played or Rejected cannot land on the terminal
// song.
func (s *QueueService) Vote(ctx context.Context, songID, sessionToken string) (store.Song, error) {
	if sessionToken == "" {
		return store.Song{}, fmt.Errorf("%w: missing session token", ErrUnauthorized)
	}

	added, err := s.store.AddVote(ctx, songID, sessionToken)
	if errors.Is(err, store.ErrNotFound) {
		return store.Song{}, fmt.Errorf("%w: song %s", ErrNotFound, songID)
	}
	if errors.Is(err, store.ErrTerminalStatus) {
		return store.Song{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	if err != nil {
		return store.Song{}, fmt.Errorf("failed to record vote: %w", err)
	}

	song, err := s.store.GetSongByID(ctx, songID)
	if err != nil {
		return store.Song{}, fmt.Errorf("failed to re-read song: %w", err)
	}

	if added {
		room, err := s.store.GetRoomByID(ctx, song.RoomID)
		if err == nil {
			s.broker.Publish(room.Code, broker.KindSongVoted)
		}
	}

	return song, nil
}

// SetStatus drives a host-moderated transition: approve, reject, or mark
// played. Only the owning host may call it. Illegal transitions — including
// any attempt to leave a terminal state — fail with ErrInvalidTransition and
// leave the song unchanged.
func (s *QueueService) SetStatus(ctx context.Context, songID, hostID, target string) (store.Song, error) {
	song, err := s.store.GetSongByID(ctx, songID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Song{}, fmt.Errorf("%w: song %s", ErrNotFound, songID)
	}
	if err != nil {
		return store.Song{}, fmt.Errorf("failed to look up song: %w", err)
	}

	room, err := s.store.GetRoomByID(ctx, song.RoomID)
	if err != nil {
		return store.Song{}, fmt.Errorf("failed to look up room: %w", err)
	}
	if room.State != store.RoomOpen {
		// Items do not outlive their room.
		return store.Song{}, fmt.Errorf("%w: room %s is closed", ErrNotFound, room.Code)
	}
	if room.HostID != hostID {
		return store.Song{}, fmt.Errorf("%w: not the room owner", ErrForbidden)
	}

	from := s.legalFrom(target)
	if from == nil {
		return store.Song{}, fmt.Errorf("%w: unknown target status %q", ErrInvalidTransition, target)
	}

	updated, err := s.store.UpdateSongStatus(ctx, songID, from, target)
	if err != nil {
		return store.Song{}, fmt.Errorf("failed to update status: %w", err)
	}
	if !updated {
		return store.Song{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, song.Status, target)
	}

	song, err = s.store.GetSongByID(ctx, songID)
	if err != nil {
		return store.Song{}, fmt.Errorf("failed to re-read song: %w", err)
	}

	s.broker.Publish(room.Code, broker.KindSongStatusChanged)
	slog.Debug("song status changed",
		slog.String("room", room.Code),
		slog.String("song_id", songID),
		slog.String("status", target))

	return song, nil
}
