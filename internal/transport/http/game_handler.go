package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"linkhunt-service/internal/app"
	"linkhunt-service/internal/domain"
	"linkhunt-service/internal/hub"
)

// GameHandler exposes the game and leaderboard operations over JSON HTTP.
type GameHandler struct {
	game   *app.GameService
	boards *app.LeaderboardService
	hub    *hub.Hub
	log    zerolog.Logger
}

func NewGameHandler(game *app.GameService, boards *app.LeaderboardService, h *hub.Hub, log zerolog.Logger) *GameHandler {
	return &GameHandler{game: game, boards: boards, hub: h, log: log}
}

// Register mounts all routes on the mux.
func (h *GameHandler) Register(mux *http.ServeMux, ws *WSHandler) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ws/stats", h.wsStats)
	mux.HandleFunc("GET /ws/{shortCode}", ws.ServeWS)

	mux.HandleFunc("GET /api/difficulties", h.difficulties)
	mux.HandleFunc("POST /api/game/{shortCode}/initialize", h.initialize)
	mux.HandleFunc("POST /api/game/{shortCode}/check-answer", h.checkAnswer)
	mux.HandleFunc("GET /api/game/{shortCode}/leaderboard", h.challengeLeaderboard)
	mux.HandleFunc("GET /api/game/{shortCode}/summary", h.summary)
	mux.HandleFunc("POST /api/session/{sessionID}/hint", h.hint)
	mux.HandleFunc("POST /api/session/{sessionID}/end", h.end)
	mux.HandleFunc("POST /api/session/{sessionID}/ad-impression", h.adImpression)
	mux.HandleFunc("POST /api/session/{sessionID}/ad-click", h.adClick)
	mux.HandleFunc("GET /api/leaderboard/global", h.globalLeaderboard)
}

type initializeResponse struct {
	SessionID    string                `json:"sessionId"`
	ShortCode    string                `json:"shortCode"`
	GameQuestion string                `json:"gameQuestion"`
	Difficulty   domain.DifficultyTier `json:"difficulty"`
	TimeLimit    int                   `json:"timeLimit"`
	MaxHints     int                   `json:"maxHints"`
}

func (h *GameHandler) initialize(w http.ResponseWriter, r *http.Request) {
	shortCode := r.PathValue("shortCode")

	session, err := h.game.Start(r.Context(), shortCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	challenge, err := h.game.Challenge(r.Context(), shortCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tier := h.game.Tier(challenge)

	question := challenge.ChallengeText
	if question == "" {
		question = "Find the original URL for: " + shortCode
	}
	timeLimit := challenge.TimeLimitSeconds
	if timeLimit == 0 {
		timeLimit = tier.TimeLimitSeconds
	}

	h.writeJSON(w, http.StatusOK, initializeResponse{
		SessionID:    session.ID,
		ShortCode:    shortCode,
		GameQuestion: question,
		Difficulty:   tier,
		TimeLimit:    timeLimit,
		MaxHints:     tier.MaxHints,
	})
}

type hintRequest struct {
	Level int `json:"level"`
}

type hintResponse struct {
	Hint               string `json:"hint"`
	HintsUsed          int    `json:"hintsUsed"`
	HintPenaltySeconds int    `json:"hintPenaltySeconds"`
}

func (h *GameHandler) hint(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	var req hintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	hint, session, err := h.game.Hint(r.Context(), sessionID, req.Level)
	if err != nil {
		h.writeError(w, err)
		return
	}
	challenge, err := h.game.Challenge(r.Context(), session.ShortCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tier := h.game.Tier(challenge)

	h.writeJSON(w, http.StatusOK, hintResponse{
		Hint:               hint,
		HintsUsed:          session.HintsUsed,
		HintPenaltySeconds: tier.HintPenaltySeconds,
	})
}

type checkAnswerRequest struct {
	SubmittedURL  string  `json:"submittedUrl"`
	TimeRemaining float64 `json:"timeRemaining"`
	HintsUsed     int     `json:"hintsUsed"`
}

type checkAnswerResponse struct {
	Correct   bool             `json:"correct"`
	Score     int              `json:"score"`
	Breakdown domain.Breakdown `json:"breakdown"`
	LongURL   string           `json:"longUrl,omitempty"`
}

func (h *GameHandler) checkAnswer(w http.ResponseWriter, r *http.Request) {
	shortCode := r.PathValue("shortCode")
	var req checkAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	challenge, err := h.game.Challenge(r.Context(), shortCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tier := h.game.Tier(challenge)

	correct := sameHost(req.SubmittedURL, challenge.LongURL)
	breakdown := domain.Score(tier, req.TimeRemaining, req.HintsUsed, correct)

	resp := checkAnswerResponse{
		Correct:   correct,
		Score:     breakdown.Total,
		Breakdown: breakdown,
	}
	if correct {
		resp.LongURL = challenge.LongURL
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type endRequest struct {
	Outcome             string  `json:"outcome"`
	Score               int     `json:"score"`
	HintsUsed           int     `json:"hintsUsed"`
	Attempts            int     `json:"attempts"`
	CompletionTime      float64 `json:"completionTime"`
	SubmitToLeaderboard bool    `json:"submitToLeaderboard"`
	Nickname            string  `json:"nickname"`
	Country             string  `json:"country"`
}

type endResponse struct {
	Outcome    string `json:"outcome"`
	FinalScore int    `json:"finalScore"`
	EntryID    string `json:"entryId,omitempty"`
}

func (h *GameHandler) end(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	var req endRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.game.Session(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	switch domain.Outcome(req.Outcome) {
	case domain.OutcomeCompleted:
		err = h.game.Complete(r.Context(), sessionID, req.CompletionTime, req.HintsUsed, req.Attempts, req.Score)
	case domain.OutcomeFailed:
		err = h.game.Fail(r.Context(), sessionID, req.Attempts, req.HintsUsed, req.Score)
	case domain.OutcomeTimeout:
		err = h.game.Timeout(r.Context(), sessionID, req.Attempts, req.HintsUsed, req.Score)
	case domain.OutcomeAbandoned:
		err = h.game.Abandon(r.Context(), sessionID)
	default:
		http.Error(w, "invalid outcome", http.StatusBadRequest)
		return
	}
	if err != nil && !isAggregateLag(err) {
		h.writeError(w, err)
		return
	}
	if err != nil {
		// Terminal state is authoritative even when the aggregate rescan
		// lagged; the recompute is idempotent and retried out of band.
		h.log.Warn().Str("session_id", sessionID).Err(err).Msg("aggregate refresh pending retry")
	}

	resp := endResponse{Outcome: req.Outcome, FinalScore: req.Score}

	if req.SubmitToLeaderboard && domain.Outcome(req.Outcome) == domain.OutcomeCompleted {
		challenge, err := h.game.Challenge(r.Context(), session.ShortCode)
		if err != nil {
			h.writeError(w, err)
			return
		}
		entryID, err := h.boards.Submit(r.Context(), session.ShortCode, req.Nickname,
			req.CompletionTime, req.HintsUsed, req.Score, challenge.Difficulty, req.Country)
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp.EntryID = entryID
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type adEventRequest struct {
	Placement string  `json:"placement"`
	Revenue   float64 `json:"revenue"`
}

func (h *GameHandler) adImpression(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	var req adEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.game.RecordAdImpression(r.Context(), sessionID, req.Placement); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *GameHandler) adClick(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	var req adEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.game.RecordAdClick(r.Context(), sessionID, req.Placement, req.Revenue); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *GameHandler) challengeLeaderboard(w http.ResponseWriter, r *http.Request) {
	shortCode := r.PathValue("shortCode")
	limit := queryInt(r, "limit", 100)

	entries, err := h.boards.Top(r.Context(), shortCode, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"shortCode": shortCode,
		"entries":   entries,
	})
}

func (h *GameHandler) globalLeaderboard(w http.ResponseWriter, r *http.Request) {
	window := domain.TimeWindow(r.URL.Query().Get("window"))
	if window == "" {
		window = domain.WindowAll
	}
	if !window.Valid() {
		http.Error(w, "invalid window, must be today, week, or all", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 100)

	entries, err := h.boards.GlobalTop(r.Context(), window, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"window":     window,
		"entries":    entries,
		"totalCount": len(entries),
	})
}

func (h *GameHandler) summary(w http.ResponseWriter, r *http.Request) {
	shortCode := r.PathValue("shortCode")
	agg, err := h.game.Summary(r.Context(), shortCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"shortCode":      shortCode,
		"aggregates":     agg,
		"completionRate": agg.CompletionRate(),
	})
}

func (h *GameHandler) difficulties(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, domain.AllTiers())
}

func (h *GameHandler) wsStats(w http.ResponseWriter, r *http.Request) {
	rooms := h.hub.AllRoomIDs()
	total := 0
	details := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		n := h.hub.ActiveObservers(room)
		total += n
		details = append(details, map[string]any{
			"shortCode":     room,
			"activePlayers": n,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"activeRooms":      len(rooms),
		"totalConnections": total,
		"roomDetails":      details,
	})
}

func (h *GameHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("response encode failed")
	}
}

func (h *GameHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrChallengeNotFound), errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrChallengeBanned):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrHintLimitExceeded):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyTerminal):
		status = http.StatusConflict
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// isAggregateLag distinguishes a failed side-effect recompute, where the
// transition itself stands, from a rejected transition.
func isAggregateLag(err error) bool {
	return errors.Is(err, app.ErrAggregateRefresh)
}

func sameHost(submitted, actual string) bool {
	a, err := url.Parse(submitted)
	if err != nil {
		return false
	}
	b, err := url.Parse(actual)
	if err != nil {
		return false
	}
	if strings.EqualFold(submitted, actual) {
		return true
	}
	return a.Host != "" && strings.EqualFold(a.Host, b.Host)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return fallback
}
