// Package broker provides an in-memory pub/sub mechanism scoped by room code.
// It is used to notify SSE connections when a room's queue changes, and to
// evict subscribers when the room closes.
package broker

import "sync"

// Kind tags a queue change event. Events carry no payload beyond the kind:
// they are pure invalidation signals and subscribers re-fetch authoritative
// state instead of trusting event contents.
type Kind string

const (
	KindSongRequested     Kind = "song_requested"
	KindSongVoted         Kind = "song_voted"
	KindSongStatusChanged Kind = "song_status_changed"
	KindRoomClosed        Kind = "room_closed"
)

// Event is a single change notification for a room.
type Event struct {
	Kind Kind
}

// subscriberBuffer bounds how many undelivered events a slow subscriber may
// hold. A full buffer drops events; correctness relies on the next full
// refetch, not on delivery.
const subscriberBuffer = 8

// Broker is a room-scoped pub/sub hub. Subscribers receive an Event whenever
// Publish is called for their room code. CloseRoom delivers a final
// room_closed event and then closes every subscriber channel, so a closed
// channel is itself a terminal eviction signal.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// New creates a ready-to-use Broker.
func New() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe returns a buffered channel that receives an Event each time
// Publish is called for the given room code. The channel is closed when the
// room closes.
func (b *Broker) Subscribe(roomCode string) chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[roomCode] == nil {
		b.subs[roomCode] = make(map[chan Event]struct{})
	}
	b.subs[roomCode][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a channel from the room's subscriber set.
// If the room has no remaining subscribers, the entry is cleaned up.
// It is a no-op after CloseRoom has already torn the room down.
func (b *Broker) Unsubscribe(roomCode string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[roomCode]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(b.subs, roomCode)
		}
	}
}

// Publish sends a non-blocking event to every subscriber for the given room.
// A subscriber with a full buffer misses the event; delivery is best-effort.
func (b *Broker) Publish(roomCode string, kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[roomCode] {
		select {
		case ch <- Event{Kind: kind}:
		default:
		}
	}
}

// CloseRoom broadcasts a final room_closed event to every subscriber, then
// closes all subscriber channels and removes the room entry. Subscribers must
// treat either the event or the channel close as terminal.
func (b *Broker) CloseRoom(roomCode string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[roomCode] {
		select {
		case ch <- Event{Kind: KindRoomClosed}:
		default:
		}
		close(ch)
	}
	delete(b.subs, roomCode)
}
