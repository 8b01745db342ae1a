package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeObserver struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (f *fakeObserver) Send(ev Event) error {
	if f.fail {
		return errors.New("connection gone")
	}
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeObserver) kinds() []EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventKind, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Kind())
	}
	return out
}

func (f *fakeObserver) last() Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}
	return f.events[len(f.events)-1]
}

func (f *fakeObserver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func newTestHub() *Hub {
	return New(zerolog.Nop())
}

func TestSubscribeAcksAndCounts(t *testing.T) {
	h := newTestHub()
	obs := &fakeObserver{}

	if size := h.Subscribe(obs, "abc123"); size != 1 {
		t.Fatalf("room size = %d, want 1", size)
	}

	kinds := obs.kinds()
	if len(kinds) != 2 || kinds[0] != KindConnected || kinds[1] != KindPlayerCount {
		t.Fatalf("got events %v, want [connected player_count]", kinds)
	}
	ack, ok := obs.events[0].(ConnectedEvent)
	if !ok || ack.ShortCode != "abc123" || ack.ActivePlayers != 1 {
		t.Fatalf("bad connected ack: %+v", obs.events[0])
	}
}

func TestBroadcastReachesWholeRoom(t *testing.T) {
	h := newTestHub()
	first := &fakeObserver{}
	second := &fakeObserver{}
	h.Subscribe(first, "abc123")
	h.Subscribe(second, "abc123")
	outsider := &fakeObserver{}
	h.Subscribe(outsider, "zzz999")

	before := outsider.count()
	h.Broadcast("abc123", NewScoreEvent{Nickname: "pat", Score: 42})

	for i, obs := range []*fakeObserver{first, second} {
		if last := obs.last(); last.Kind() != KindNewScore {
			t.Fatalf("observer %d: last event %s, want new_score", i, last.Kind())
		}
	}
	if outsider.count() != before {
		t.Fatalf("broadcast leaked into another room")
	}
}

func TestUnsubscribeLeavesRoomUsable(t *testing.T) {
	h := newTestHub()
	leaver := &fakeObserver{}
	stayer := &fakeObserver{}
	h.Subscribe(leaver, "abc123")
	h.Subscribe(stayer, "abc123")

	h.Unsubscribe(leaver)
	if got := h.ActiveObservers("abc123"); got != 1 {
		t.Fatalf("room size after unsubscribe = %d, want 1", got)
	}

	mark := leaver.count()
	h.Broadcast("abc123", PlayerCountEvent{Count: 1})
	if leaver.count() != mark {
		t.Fatalf("unsubscribed observer still receiving events")
	}
	if stayer.last().Kind() != KindPlayerCount {
		t.Fatalf("remaining observer missed broadcast")
	}
}

func TestEmptyRoomIsDropped(t *testing.T) {
	h := newTestHub()
	obs := &fakeObserver{}
	h.Subscribe(obs, "abc123")
	h.Unsubscribe(obs)

	if got := h.RoomCount(); got != 0 {
		t.Fatalf("room count = %d, want 0", got)
	}
	if ids := h.AllRoomIDs(); len(ids) != 0 {
		t.Fatalf("empty room still listed: %v", ids)
	}
	// Broadcasting into a vanished room is a no-op, not a panic.
	h.Broadcast("abc123", PlayerCountEvent{Count: 0})
}

func TestBroadcastEvictsFailingObserver(t *testing.T) {
	h := newTestHub()
	healthy := &fakeObserver{}
	broken := &fakeObserver{fail: true}
	h.Subscribe(healthy, "abc123")

	// Insert the broken observer directly so its failing Send does not
	// already evict it during the subscribe ack.
	h.mu.Lock()
	h.rooms["abc123"][broken] = struct{}{}
	h.codes[broken] = "abc123"
	h.mu.Unlock()

	h.Broadcast("abc123", PlayerCountEvent{Count: 2})
	if got := h.ActiveObservers("abc123"); got != 1 {
		t.Fatalf("room size after eviction = %d, want 1", got)
	}
	if healthy.last().Kind() != KindPlayerCount {
		t.Fatalf("healthy observer missed the broadcast")
	}
}

func TestSubscribeFailedAckBroadcastsHonestCount(t *testing.T) {
	h := newTestHub()
	healthy := &fakeObserver{}
	h.Subscribe(healthy, "abc123")

	// The newcomer's ack fails, so it is evicted before the player count
	// goes out; the room must not hear the pre-eviction size.
	broken := &fakeObserver{fail: true}
	h.Subscribe(broken, "abc123")

	if got := h.ActiveObservers("abc123"); got != 1 {
		t.Fatalf("room size = %d, want 1", got)
	}
	pc, ok := healthy.last().(PlayerCountEvent)
	if !ok {
		t.Fatalf("last event = %T, want PlayerCountEvent", healthy.last())
	}
	if pc.Count != 1 {
		t.Fatalf("announced count = %d, want 1", pc.Count)
	}
}

func TestUnicastFailureEvicts(t *testing.T) {
	h := newTestHub()
	broken := &fakeObserver{fail: true}
	h.Subscribe(broken, "abc123")

	if got := h.ActiveObservers("abc123"); got != 0 {
		t.Fatalf("failed observer not evicted, room size %d", got)
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	h := newTestHub()
	obs := &fakeObserver{}
	h.Subscribe(obs, "abc123")

	d := NewDispatcher(h, zerolog.Nop(), 8)
	d.Enqueue("abc123", NewScoreEvent{Nickname: "a", Score: 1})
	d.Enqueue("abc123", GameCompleteEvent{Score: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if kinds := obs.kinds(); len(kinds) >= 4 {
			if kinds[2] != KindNewScore || kinds[3] != KindGameComplete {
				t.Fatalf("events out of order: %v", kinds)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("dispatcher never drained: %v", obs.kinds())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatcher did not stop on cancel")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	h := newTestHub()
	d := NewDispatcher(h, zerolog.Nop(), 1)
	// No drain loop running: second enqueue must not block.
	d.Enqueue("abc123", PlayerCountEvent{Count: 1})
	done := make(chan struct{})
	go func() {
		d.Enqueue("abc123", PlayerCountEvent{Count: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Enqueue blocked on a full queue")
	}
}
