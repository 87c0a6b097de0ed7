package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/openmic/backend/internal/broker"
	"github.com/openmic/backend/internal/store"
)

func newTestRooms(t *testing.T, singlePerHost bool) (*RoomService, *store.Store, *broker.Broker) {
	t.Helper()
	s := newTestStore(t)
	b := newTestBroker(t)
	return NewRoomService(s, b, singlePerHost), s, b
}

func registerTestHost(t *testing.T, s *store.Store, email string) store.Host {
	t.Helper()
	auth := NewAuthService(s, "test-secret", testTokenDuration)
	host, _, err := auth.Register(context.Background(), email, "a long enough password")
	if err != nil {
		t.Fatalf("failed to register host: %v", err)
	}
	return host
}

func TestCreateAndGetRoom(t *testing.T) {
	ctx := context.Background()
	rooms, s, _ := newTestRooms(t, true)
	host := registerTestHost(t, s, "host@example.com")

	room, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(room.Code) != 4 {
		t.Errorf("room code %q is not 4 digits", room.Code)
	}

	got, err := rooms.Get(ctx, room.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != room.ID {
		t.Errorf("Get returned room %q, want %q", got.ID, room.ID)
	}
}

func TestGetUnknownCode(t *testing.T) {
	rooms, _, _ := newTestRooms(t, true)

	_, err := rooms.Get(context.Background(), "0000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSingleRoomPerHostReturnsExisting(t *testing.T) {
	ctx := context.Background()
	rooms, s, _ := newTestRooms(t, true)
	host := registerTestHost(t, s, "host@example.com")

	first, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second Create allocated a new room %q, want existing %q", second.ID, first.ID)
	}
}

func TestMultipleRoomsPerHostWhenPolicyOff(t *testing.T) {
	ctx := context.Background()
	rooms, s, _ := newTestRooms(t, false)
	host := registerTestHost(t, s, "host@example.com")

	first, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a second distinct room with the single-room policy off")
	}
}

func TestCloseRoom(t *testing.T) {
	ctx := context.Background()
	rooms, s, b := newTestRooms(t, true)
	host := registerTestHost(t, s, "host@example.com")

	room, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A subscriber on the room must be evicted with a terminal event.
	ch := b.Subscribe(room.Code)

	if err := rooms.Close(ctx, room.Code, host.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ev, ok := <-ch
	if !ok {
		t.Fatal("channel closed without a room_closed event")
	}
	if ev.Kind != broker.KindRoomClosed {
		t.Errorf("event kind = %q, want %q", ev.Kind, broker.KindRoomClosed)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after room close")
	}

	if _, err := rooms.Get(ctx, room.Code); !errors.Is(err, ErrNotFound) {
		t.Errorf("closed room still resolvable: %v", err)
	}
}

func TestCloseRoomNotOwner(t *testing.T) {
	ctx := context.Background()
	rooms, s, _ := newTestRooms(t, true)
	host := registerTestHost(t, s, "host@example.com")
	other := registerTestHost(t, s, "other@example.com")

	room, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := rooms.Close(ctx, room.Code, other.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestCloseRoomTwice(t *testing.T) {
	ctx := context.Background()
	rooms, s, _ := newTestRooms(t, true)
	host := registerTestHost(t, s, "host@example.com")

	room, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := rooms.Close(ctx, room.Code, host.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rooms.Close(ctx, room.Code, host.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second close, got %v", err)
	}
}

// collidingSource always yields the same value, forcing every random code
// probe onto a single code.
type collidingSource struct{}

func (collidingSource) Int63() int64 { return 0 }
func (collidingSource) Seed(int64)   {}

func TestCreateSweepsWhenRandomProbesCollide(t *testing.T) {
	ctx := context.Background()
	rooms, s, _ := newTestRooms(t, false)
	host := registerTestHost(t, s, "host@example.com")

	// Pin the rng so every probe lands on an occupied code; allocation must
	// still succeed by sweeping the space, not report exhaustion.
	rooms.rng = rand.New(collidingSource{})
	pinned := fmt.Sprintf("%04d", rooms.rng.Intn(codeSpace))
	taken := store.Room{ID: "taken-room", Code: pinned, HostID: host.ID}
	if err := s.CreateRoom(ctx, taken); err != nil {
		t.Fatalf("failed to occupy code %s: %v", pinned, err)
	}

	room, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if room.Code == pinned {
		t.Errorf("allocated the occupied code %s", pinned)
	}
	if len(room.Code) != 4 {
		t.Errorf("room code %q is not 4 digits", room.Code)
	}
}

func TestCodeReusableAfterClose(t *testing.T) {
	ctx := context.Background()
	rooms, s, _ := newTestRooms(t, false)
	host := registerTestHost(t, s, "host@example.com")

	room, err := rooms.Create(ctx, host.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := rooms.Close(ctx, room.Code, host.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The released code is directly creatable again at the store layer.
	reused := store.Room{ID: "reused-room", Code: room.Code, HostID: host.ID}
	if err := s.CreateRoom(ctx, reused); err != nil {
		t.Fatalf("code %q not reusable after close: %v", room.Code, err)
	}
}
