package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/store"
)

// codeSpace is the number of possible 4-digit room codes.
const codeSpace = 10000

// maxCodeAttempts bounds random allocation probes before falling back to a
// full sweep of the code space.
const maxCodeAttempts = 100

// RoomService is the room registry: it allocates codes, resolves them to open
// rooms, and closes rooms.
type RoomService struct {
	store  *store.Store
	broker *broker.Broker

	// mu serializes code allocation against close. Holding it across the
	// close commit and the room_closed broadcast guarantees a code is never
	// re-issued before the old occupant's subscribers have been notified.
	mu  sync.Mutex
	rng *rand.Rand

	// singlePerHost makes Create return the host's still-open room instead
	// of allocating a second one.
	singlePerHost bool
}

// NewRoomService creates a RoomService with its own random source.
func NewRoomService(s *store.Store, b *broker.Broker, singlePerHost bool) *RoomService {
	return &RoomService{
		store:         s,
		broker:        b,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		singlePerHost: singlePerHost,
	}
}

// Create opens a new room for the host under a fresh unique 4-digit code.
// Under the single-room policy a host re-creating before closing gets its
// existing open room back. Fails with ErrCapacityExhausted when no code is
// free.
func (s *RoomService) Create(ctx context.Context, hostID string) (store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.singlePerHost {
		existing, err := s.store.GetOpenRoomByHost(ctx, hostID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return store.Room{}, fmt.Errorf("failed to check for open room: %w", err)
		}
	}

	open, err := s.store.CountOpenRooms(ctx)
	if err != nil {
		return store.Room{}, fmt.Errorf("failed to count open rooms: %w", err)
	}
	if open >= codeSpace {
		return store.Room{}, ErrCapacityExhausted
	}

	for i := 0; i < maxCodeAttempts; i++ {
		room, err := s.tryCode(ctx, hostID, s.rng.Intn(codeSpace))
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		return room, err
	}

	// Random probing was unlucky; the count check proved a code is free, so
	// sweep the whole space from a random offset.
	start := s.rng.Intn(codeSpace)
	for i := 0; i < codeSpace; i++ {
		room, err := s.tryCode(ctx, hostID, (start+i)%codeSpace)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		return room, err
	}

	return store.Room{}, ErrCapacityExhausted
}

// tryCode attempts to claim one code for the host. A taken code surfaces as
// store.ErrDuplicate.
func (s *RoomService) tryCode(ctx context.Context, hostID string, code int) (store.Room, error) {
	room := store.Room{
		ID:     uuid.New().String(),
		Code:   fmt.Sprintf("%04d", code),
		HostID: hostID,
	}
	err := s.store.CreateRoom(ctx, room)
	if errors.Is(err, store.ErrDuplicate) {
		return store.Room{}, err
	}
	if err != nil {
		return store.Room{}, fmt.Errorf("failed to create room: %w", err)
	}
	slog.Info("room created", slog.String("code", room.Code), slog.String("host_id", hostID))
	return room, nil
}

// Get resolves a code to its open room. Closed rooms fail with ErrNotFound.
func (s *RoomService) Get(ctx context.Context, code string) (store.Room, error) {
	room, err := s.store.GetOpenRoomByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return store.Room{}, fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	return room, err
}

// Close transitions the host's room to closed, releases its code, and evicts
// every subscriber with a room_closed broadcast. The broadcast is attempted
// before the registry lock is released, so the code cannot land on a new room
// while stale subscribers are still attached.
func (s *RoomService) Close(ctx context.Context, code, hostID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.store.GetOpenRoomByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: room %s", ErrNotFound, code)
	}
	if err != nil {
		return fmt.Errorf("failed to look up room: %w", err)
	}
	if room.HostID != hostID {
		return fmt.Errorf("%w: not the room owner", ErrForbidden)
	}

	if err := s.store.CloseRoom(ctx, room.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race with another close of the same room.
			return fmt.Errorf("%w: room %s", ErrNotFound, code)
		}
		return fmt.Errorf("failed to close room: %w", err)
	}

	s.broker.CloseRoom(code)
	slog.Info("room closed", slog.String("code", code), slog.String("host_id", hostID))
	return nil
}
