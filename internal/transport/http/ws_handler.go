package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"linkhunt-service/internal/hub"
)

// WSHandler upgrades observer connections and wires them into the hub.
type WSHandler struct {
	hub      *hub.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub: h,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type pongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type gameStartedPayload struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

type pingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ServeWS subscribes the connection to a challenge's room and relays inbound
// keepalives and client-side announcements. Keepalive ping/pong stays here;
// the hub only ever sees real game events.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	shortCode := r.PathValue("shortCode")
	if shortCode == "" {
		shortCode = r.URL.Query().Get("shortCode")
	}
	if shortCode == "" {
		http.Error(w, "missing shortCode", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	obs := newConnObserver(conn, h.log)
	defer obs.close()

	h.hub.Subscribe(obs, shortCode)
	defer func() {
		h.hub.Unsubscribe(obs)
		h.hub.Broadcast(shortCode, hub.PlayerCountEvent{Count: h.hub.ActiveObservers(shortCode)})
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "ping":
			var payload pingPayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			_ = obs.enqueue(pongFrame{Type: "pong", Timestamp: payload.Timestamp})
		case "game_started":
			var payload gameStartedPayload
			_ = json.Unmarshal(inbound.Payload, &payload)
			h.hub.Broadcast(shortCode, hub.GameStartEvent{
				SessionID:     payload.SessionID,
				ActivePlayers: h.hub.ActiveObservers(shortCode),
			})
		default:
			// Unknown inbound types are ignored; the live channel is
			// outbound-first and the REST surface is the real API.
		}
	}
}
