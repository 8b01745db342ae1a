package http

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"linkhunt-service/internal/hub"
)

var errObserverGone = errors.New("observer send buffer full or closed")

// connObserver adapts one websocket connection to hub.Observer. Outbound
// messages go through a bounded channel drained by a single writer
// goroutine; a full buffer fails the send so the hub evicts the observer
// instead of the broadcaster stalling.
type connObserver struct {
	conn    *websocket.Conn
	log     zerolog.Logger
	send    chan any
	done    chan struct{}
	closing sync.Once
}

func newConnObserver(conn *websocket.Conn, log zerolog.Logger) *connObserver {
	obs := &connObserver{
		conn: conn,
		log:  log,
		send: make(chan any, 16),
		done: make(chan struct{}),
	}
	go obs.writeLoop()
	return obs
}

func (o *connObserver) Send(ev hub.Event) error {
	return o.enqueue(hub.Wrap(ev))
}

// enqueue accepts any JSON-marshalable frame; the transport uses it directly
// for keepalive pongs, which are not hub events.
func (o *connObserver) enqueue(frame any) error {
	select {
	case <-o.done:
		return errObserverGone
	default:
	}
	select {
	case o.send <- frame:
		return nil
	default:
		return errObserverGone
	}
}

func (o *connObserver) writeLoop() {
	for {
		select {
		case frame := <-o.send:
			if err := o.conn.WriteJSON(frame); err != nil {
				o.log.Debug().Err(err).Msg("ws write error")
				o.close()
				return
			}
		case <-o.done:
			return
		}
	}
}

func (o *connObserver) close() {
	o.closing.Do(func() { close(o.done) })
}
