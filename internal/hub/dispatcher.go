package hub

import (
	"context"

	"github.com/rs/zerolog"
)

type queued struct {
	shortCode string
	event     Event
}

// Dispatcher decouples state transitions from observer delivery: transitions
// enqueue, a single drain loop broadcasts. Enqueue never blocks; when the
// queue is full the event is dropped and counted.
type Dispatcher struct {
	hub   *Hub
	log   zerolog.Logger
	queue chan queued
}

func NewDispatcher(h *Hub, log zerolog.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		hub:   h,
		log:   log,
		queue: make(chan queued, buffer),
	}
}

// Enqueue stages an event for broadcast to the challenge's room.
func (d *Dispatcher) Enqueue(shortCode string, ev Event) {
	select {
	case d.queue <- queued{shortCode: shortCode, event: ev}:
	default:
		d.log.Warn().Str("short_code", shortCode).Str("event", string(ev.Kind())).Msg("event queue full, dropping")
	}
}

// Run drains the queue until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case item := <-d.queue:
			d.hub.Broadcast(item.shortCode, item.event)
		case <-ctx.Done():
			return
		}
	}
}
