package hub

import (
	"sync"

	"github.com/rs/zerolog"
)

// Observer is one live connection interested in a challenge's updates.
// Send must not block indefinitely: it either delivers or returns an error,
// and an erroring observer is evicted from its room.
type Observer interface {
	Send(ev Event) error
}

// Hub maintains the mapping from challenge short code to the set of
// subscribed observers. Rooms appear on first subscribe and vanish when the
// last observer leaves; membership mutation is atomic with respect to
// concurrent broadcasts into the same room.
type Hub struct {
	log zerolog.Logger

	mu    sync.RWMutex
	rooms map[string]map[Observer]struct{}
	codes map[Observer]string
}

func New(log zerolog.Logger) *Hub {
	return &Hub{
		log:   log,
		rooms: make(map[string]map[Observer]struct{}),
		codes: make(map[Observer]string),
	}
}

// Subscribe adds the observer to the challenge's room, creating the room if
// absent, and returns the new room size. The observer immediately receives a
// connected ack, then the whole room (including the newcomer) receives the
// updated player count.
func (h *Hub) Subscribe(obs Observer, shortCode string) int {
	h.mu.Lock()
	room, ok := h.rooms[shortCode]
	if !ok {
		room = make(map[Observer]struct{})
		h.rooms[shortCode] = room
	}
	room[obs] = struct{}{}
	h.codes[obs] = shortCode
	size := len(room)
	h.mu.Unlock()

	h.Unicast(obs, ConnectedEvent{
		ShortCode:     shortCode,
		Message:       "Connected to " + shortCode + " updates",
		ActivePlayers: size,
	})
	// The ack may have evicted the newcomer, so the count is re-read rather
	// than reusing the size captured above.
	h.Broadcast(shortCode, PlayerCountEvent{Count: h.ActiveObservers(shortCode)})
	return size
}

// Unsubscribe removes the observer from whatever room it belongs to and
// drops the room when it empties. It does not broadcast the resulting player
// count; the caller does, so it can batch disconnect context with it.
func (h *Hub) Unsubscribe(obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(obs)
}

func (h *Hub) removeLocked(obs Observer) {
	shortCode, ok := h.codes[obs]
	if !ok {
		return
	}
	delete(h.codes, obs)
	room, ok := h.rooms[shortCode]
	if !ok {
		return
	}
	delete(room, obs)
	if len(room) == 0 {
		delete(h.rooms, shortCode)
	}
}

// Broadcast delivers the event to every current observer of the room. An
// observer whose Send fails is evicted as a side effect; the rest of the
// broadcast proceeds.
func (h *Hub) Broadcast(shortCode string, ev Event) {
	h.mu.RLock()
	room := h.rooms[shortCode]
	observers := make([]Observer, 0, len(room))
	for obs := range room {
		observers = append(observers, obs)
	}
	h.mu.RUnlock()

	for _, obs := range observers {
		if err := obs.Send(ev); err != nil {
			h.log.Debug().Str("short_code", shortCode).Str("event", string(ev.Kind())).Err(err).Msg("evicting stale observer")
			h.evict(obs)
		}
	}
}

// Unicast delivers to exactly one observer, evicting it on failure.
func (h *Hub) Unicast(obs Observer, ev Event) {
	if err := obs.Send(ev); err != nil {
		h.log.Debug().Str("event", string(ev.Kind())).Err(err).Msg("unicast failed, evicting observer")
		h.evict(obs)
	}
}

func (h *Hub) evict(obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(obs)
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ActiveObservers returns the current size of a challenge's room.
func (h *Hub) ActiveObservers(shortCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[shortCode])
}

// AllRoomIDs lists the short codes with at least one observer.
func (h *Hub) AllRoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for code := range h.rooms {
		ids = append(ids, code)
	}
	return ids
}
