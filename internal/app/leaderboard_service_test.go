package app

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"linkhunt-service/internal/domain"
	"linkhunt-service/internal/hub"
)

type fakeLeaderboardRepo struct {
	mu      sync.Mutex
	entries map[string]domain.LeaderboardEntry
	order   []string
	clock   func() time.Time
}

func newFakeLeaderboardRepo() *fakeLeaderboardRepo {
	return &fakeLeaderboardRepo{
		entries: make(map[string]domain.LeaderboardEntry),
		clock:   time.Now,
	}
}

func (r *fakeLeaderboardRepo) PersistEntry(_ context.Context, entry domain.LeaderboardEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; !ok {
		r.order = append(r.order, entry.ID)
	}
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeLeaderboardRepo) LoadEntries(_ context.Context, shortCode string, window domain.TimeWindow) ([]domain.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := window.CutOff(r.clock())
	var out []domain.LeaderboardEntry
	for _, id := range r.order {
		e := r.entries[id]
		if shortCode != "" && e.ShortCode != shortCode {
			continue
		}
		if !cutoff.IsZero() && e.CompletedAt.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *fakeLeaderboardRepo) UpdateRanks(_ context.Context, entries []domain.LeaderboardEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		stored := r.entries[e.ID]
		stored.Rank = e.Rank
		stored.Percentile = e.Percentile
		r.entries[e.ID] = stored
	}
	return nil
}

func newTestLeaderboard(t *testing.T) (*LeaderboardService, *fakeLeaderboardRepo, *fakeSink) {
	t.Helper()
	repo := newFakeLeaderboardRepo()
	sink := &fakeSink{}
	return NewLeaderboardService(repo, sink, zerolog.Nop()), repo, sink
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestSubmitAssignsDenseRanks(t *testing.T) {
	svc, repo, _ := newTestLeaderboard(t)
	ctx := context.Background()

	// Two score ties broken by completion time, then a lower score.
	if _, err := svc.Submit(ctx, "go4it", "slow", 30, 0, 100, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, "go4it", "fast", 20, 0, 100, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, "go4it", "third", 10, 0, 80, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	entries, err := repo.LoadEntries(ctx, "go4it", domain.WindowAll)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	byNick := make(map[string]domain.LeaderboardEntry)
	for _, e := range entries {
		byNick[e.Nickname] = e
	}

	if byNick["fast"].Rank != 1 || byNick["slow"].Rank != 2 || byNick["third"].Rank != 3 {
		t.Fatalf("ranks = fast:%d slow:%d third:%d, want 1 2 3",
			byNick["fast"].Rank, byNick["slow"].Rank, byNick["third"].Rank)
	}
	if !almostEqual(byNick["fast"].Percentile, 33.33) ||
		!almostEqual(byNick["slow"].Percentile, 66.67) ||
		!almostEqual(byNick["third"].Percentile, 100) {
		t.Fatalf("percentiles = %.2f %.2f %.2f",
			byNick["fast"].Percentile, byNick["slow"].Percentile, byNick["third"].Percentile)
	}
}

func TestRecomputeRanksIdempotent(t *testing.T) {
	svc, repo, _ := newTestLeaderboard(t)
	ctx := context.Background()

	for i, score := range []int{50, 90, 70} {
		if _, err := svc.Submit(ctx, "go4it", "", float64(10+i), 0, score, "hard", ""); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	first, _ := repo.LoadEntries(ctx, "go4it", domain.WindowAll)
	for i := 0; i < 3; i++ {
		if err := svc.RecomputeRanks(ctx, "go4it"); err != nil {
			t.Fatalf("RecomputeRanks: %v", err)
		}
	}
	again, _ := repo.LoadEntries(ctx, "go4it", domain.WindowAll)
	for i := range first {
		if first[i].Rank != again[i].Rank || first[i].Percentile != again[i].Percentile {
			t.Fatalf("recompute drifted at %d: %+v vs %+v", i, first[i], again[i])
		}
	}
}

func TestSubmitDefaultsNickname(t *testing.T) {
	svc, repo, _ := newTestLeaderboard(t)
	ctx := context.Background()

	id, err := svc.Submit(ctx, "go4it", "", 12, 0, 60, "medium", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	entries, _ := repo.LoadEntries(ctx, "go4it", domain.WindowAll)
	if len(entries) != 1 || entries[0].ID != id {
		t.Fatalf("entry not persisted: %+v", entries)
	}
	if entries[0].Nickname != "Anonymous" {
		t.Fatalf("nickname = %q, want Anonymous", entries[0].Nickname)
	}
}

func TestSubmitNormalizesUnknownDifficulty(t *testing.T) {
	svc, repo, _ := newTestLeaderboard(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "go4it", "pat", 12, 0, 60, "brutal", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	entries, _ := repo.LoadEntries(ctx, "go4it", domain.WindowAll)
	if entries[0].Difficulty != "medium" {
		t.Fatalf("difficulty = %q, want medium", entries[0].Difficulty)
	}
}

func TestSubmitBroadcastsScoreAndTop(t *testing.T) {
	svc, _, sink := newTestLeaderboard(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "go4it", "pat", 12, 1, 60, "medium", "SE"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	kinds := sink.kinds()
	if len(kinds) != 2 || kinds[0] != hub.KindNewScore || kinds[1] != hub.KindLeaderboardUpdate {
		t.Fatalf("events = %v, want [new_score leaderboard_update]", kinds)
	}
	score := sink.events[0].event.(hub.NewScoreEvent)
	if score.Nickname != "pat" || score.Score != 60 || score.HintsUsed != 1 {
		t.Fatalf("bad new_score payload: %+v", score)
	}
	update := sink.events[1].event.(hub.LeaderboardUpdateEvent)
	if len(update.Entries) != 1 {
		t.Fatalf("top carried %d entries, want 1", len(update.Entries))
	}
}

func TestTopOrdersFresh(t *testing.T) {
	svc, _, _ := newTestLeaderboard(t)
	ctx := context.Background()

	for _, sub := range []struct {
		nick  string
		time  float64
		score int
	}{
		{"low", 5, 10},
		{"mid", 40, 50},
		{"high", 60, 90},
	} {
		if _, err := svc.Submit(ctx, "go4it", sub.nick, sub.time, 0, sub.score, "simple", ""); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	top, err := svc.Top(ctx, "go4it", 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 || top[0].Nickname != "high" || top[1].Nickname != "mid" {
		t.Fatalf("top = %+v", top)
	}
	if top[0].Rank != 1 || top[1].Rank != 2 {
		t.Fatalf("top ranks = %d %d", top[0].Rank, top[1].Rank)
	}
}

func TestGlobalTopSpansChallengesAndRanksByPosition(t *testing.T) {
	svc, _, _ := newTestLeaderboard(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "aaa", "first", 10, 0, 100, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, "bbb", "second", 10, 0, 90, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, "aaa", "third", 10, 0, 80, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	top, err := svc.GlobalTop(ctx, domain.WindowAll, 10)
	if err != nil {
		t.Fatalf("GlobalTop: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("got %d entries, want 3", len(top))
	}
	for i, e := range top {
		if e.Rank != i+1 {
			t.Fatalf("entry %d rank = %d, want page position %d", i, e.Rank, i+1)
		}
	}
	if top[0].Nickname != "first" || top[1].Nickname != "second" || top[2].Nickname != "third" {
		t.Fatalf("global order wrong: %+v", top)
	}
}

func TestGlobalTopWindowFiltersOldEntries(t *testing.T) {
	repo := newFakeLeaderboardRepo()
	sink := &fakeSink{}
	svc := NewLeaderboardService(repo, sink, zerolog.Nop())

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	// yesterday's run, today's run, and one from last month
	svc.WithClock(func() time.Time { return now.Add(-20 * time.Hour) })
	if _, err := svc.Submit(context.Background(), "go4it", "yesterday", 10, 0, 50, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.WithClock(func() time.Time { return now.Add(-time.Hour) })
	if _, err := svc.Submit(context.Background(), "go4it", "today", 10, 0, 40, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	svc.WithClock(func() time.Time { return now.Add(-30 * 24 * time.Hour) })
	if _, err := svc.Submit(context.Background(), "go4it", "lastmonth", 10, 0, 99, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	today, err := svc.GlobalTop(context.Background(), domain.WindowToday, 10)
	if err != nil {
		t.Fatalf("GlobalTop today: %v", err)
	}
	if len(today) != 1 || today[0].Nickname != "today" {
		t.Fatalf("today window = %+v", today)
	}

	week, err := svc.GlobalTop(context.Background(), domain.WindowWeek, 10)
	if err != nil {
		t.Fatalf("GlobalTop week: %v", err)
	}
	if len(week) != 2 {
		t.Fatalf("week window carried %d entries, want 2", len(week))
	}

	all, err := svc.GlobalTop(context.Background(), domain.WindowAll, 10)
	if err != nil {
		t.Fatalf("GlobalTop all: %v", err)
	}
	if len(all) != 3 || all[0].Nickname != "lastmonth" {
		t.Fatalf("all window = %+v", all)
	}
}

func TestGlobalTopInvalidWindowFallsBackToAll(t *testing.T) {
	svc, _, _ := newTestLeaderboard(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "go4it", "pat", 10, 0, 50, "medium", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	top, err := svc.GlobalTop(ctx, domain.TimeWindow("fortnight"), 10)
	if err != nil {
		t.Fatalf("GlobalTop: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("fallback window returned %d entries, want 1", len(top))
	}
}
