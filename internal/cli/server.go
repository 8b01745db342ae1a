package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"linkhunt-service/internal/app"
	"linkhunt-service/internal/config"
	"linkhunt-service/internal/domain"
	"linkhunt-service/internal/hub"
	"linkhunt-service/internal/infra/memory"
	pgstore "linkhunt-service/internal/infra/postgres"
	redisinfra "linkhunt-service/internal/infra/redis"
	transport "linkhunt-service/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log.Level)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	challengeTTL := config.TTLDuration(cfg.Challenge.TTL, 10*time.Minute)

	var challenges app.ChallengeRepository
	if pool != nil {
		challenges = pgstore.NewChallengeStore(pool)
	} else {
		challenges = memory.NewChallengeStore(sampleChallenges())
	}
	if redisClient != nil {
		challenges = redisinfra.NewChallengeCache(redisClient, challenges, challengeTTL)
	} else {
		challenges = memory.NewChallengeCache(challenges, challengeTTL)
	}

	var sessions app.SessionRepository
	var entries app.LeaderboardRepository
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient)
		entries = redisinfra.NewLeaderboardStore(redisClient)
	} else {
		sessions = memory.NewSessionStore()
		entries = memory.NewLeaderboardStore()
	}

	liveHub := hub.New(logger)
	dispatcher := hub.NewDispatcher(liveHub, logger, cfg.Hub.QueueSize)

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	go dispatcher.Run(dispatchCtx)

	game := app.NewGameService(challenges, sessions, dispatcher, liveHub, logger)
	boards := app.NewLeaderboardService(entries, dispatcher, logger)

	wsHandler := transport.NewWSHandler(liveHub, logger)
	gameHandler := transport.NewGameHandler(game, boards, liveHub, logger)

	mux := http.NewServeMux()
	gameHandler.Register(mux, wsHandler)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting linkhunt service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}

// sampleChallenges seeds the in-memory store for demos; production points at
// the shortener's Postgres.
func sampleChallenges() map[string]domain.Challenge {
	return map[string]domain.Challenge{
		"go4it": {
			ShortCode:        "go4it",
			LongURL:          "https://golang.org/doc/effective_go",
			Difficulty:       "medium",
			ChallengeText:    "Where do gophers go to write better code?",
			TimeLimitSeconds: 120,
			CreatedAt:        time.Now(),
		},
		"ez1": {
			ShortCode:        "ez1",
			LongURL:          "https://example.com/",
			Difficulty:       "simple",
			TimeLimitSeconds: 60,
			CreatedAt:        time.Now(),
		},
	}
}
