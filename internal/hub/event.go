package hub

import "linkhunt-service/internal/domain"

// EventKind names the closed set of events the hub can deliver.
type EventKind string

const (
	KindConnected         EventKind = "connected"
	KindPlayerCount       EventKind = "player_count"
	KindGameStart         EventKind = "game_start"
	KindNewScore          EventKind = "new_score"
	KindLeaderboardUpdate EventKind = "leaderboard_update"
	KindGameComplete      EventKind = "game_complete"
)

// Event is the closed sum of hub event payloads. The wire shape for every
// variant is {"type": <kind>, "data": <payload>}.
type Event interface {
	Kind() EventKind
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type EventKind `json:"type"`
	Data any       `json:"data"`
}

// Wrap boxes an event into its wire envelope.
func Wrap(ev Event) Envelope {
	return Envelope{Type: ev.Kind(), Data: ev}
}

// ConnectedEvent acknowledges a fresh subscription to one observer.
type ConnectedEvent struct {
	ShortCode     string `json:"shortCode"`
	Message       string `json:"message"`
	ActivePlayers int    `json:"activePlayers"`
}

func (ConnectedEvent) Kind() EventKind { return KindConnected }

// PlayerCountEvent carries the room size after a membership change.
type PlayerCountEvent struct {
	Count int `json:"count"`
}

func (PlayerCountEvent) Kind() EventKind { return KindPlayerCount }

// GameStartEvent announces a new session in the room.
type GameStartEvent struct {
	SessionID     string `json:"sessionId"`
	ActivePlayers int    `json:"activePlayers"`
}

func (GameStartEvent) Kind() EventKind { return KindGameStart }

// NewScoreEvent announces a fresh leaderboard submission.
type NewScoreEvent struct {
	Nickname       string  `json:"nickname"`
	Score          int     `json:"score"`
	CompletionTime float64 `json:"completionTime"`
	HintsUsed      int     `json:"hintsUsed"`
	Difficulty     string  `json:"difficulty"`
	EntryID        string  `json:"entryId"`
}

func (NewScoreEvent) Kind() EventKind { return KindNewScore }

// LeaderboardUpdateEvent carries the refreshed top entries for the room.
type LeaderboardUpdateEvent struct {
	Entries []domain.LeaderboardEntry `json:"entries"`
}

func (LeaderboardUpdateEvent) Kind() EventKind { return KindLeaderboardUpdate }

// GameCompleteEvent announces a terminal outcome in the room.
type GameCompleteEvent struct {
	Outcome  domain.Outcome `json:"outcome"`
	Score    int            `json:"score"`
	Nickname string         `json:"nickname,omitempty"`
}

func (GameCompleteEvent) Kind() EventKind { return KindGameComplete }
