package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"linkhunt-service/internal/domain"
)

// ChallengeStore reads challenge JSONB from Postgres and writes back the
// denormalized aggregate columns.
type ChallengeStore struct {
	pool *pgxpool.Pool
}

func NewChallengeStore(pool *pgxpool.Pool) *ChallengeStore {
	return &ChallengeStore{pool: pool}
}

func (s *ChallengeStore) FindChallenge(ctx context.Context, shortCode string) (domain.Challenge, error) {
	var (
		raw []byte
		agg domain.Aggregates
	)
	err := s.pool.QueryRow(ctx,
		`SELECT data, total_views, total_completions, total_failures, total_timeouts, avg_completion_time
		 FROM challenges WHERE short_code=$1`, shortCode).
		Scan(&raw, &agg.TotalViews, &agg.TotalCompletions, &agg.TotalFailures, &agg.TotalTimeouts, &agg.AvgCompletionTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("load challenge: %w", err)
	}

	var challenge domain.Challenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return domain.Challenge{}, fmt.Errorf("unmarshal challenge: %w", err)
	}
	challenge.ShortCode = shortCode
	challenge.Aggregates = agg
	return challenge, nil
}

func (s *ChallengeStore) IncrementViews(ctx context.Context, shortCode string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE challenges SET total_views = total_views + 1 WHERE short_code=$1`, shortCode)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChallengeNotFound
	}
	return nil
}

func (s *ChallengeStore) UpdateAggregates(ctx context.Context, shortCode string, agg domain.Aggregates) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE challenges
		 SET total_completions=$2, total_failures=$3, total_timeouts=$4, avg_completion_time=$5
		 WHERE short_code=$1`,
		shortCode, agg.TotalCompletions, agg.TotalFailures, agg.TotalTimeouts, agg.AvgCompletionTime)
	if err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChallengeNotFound
	}
	return nil
}
