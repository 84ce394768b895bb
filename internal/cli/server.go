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
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"
	pginfra "quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt service",
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
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var (
		ledger    app.AttemptLedger
		settings  app.SettingsStore
		quizAdmin app.QuizAdmin
		quizRepo  app.QuizRepository
		quizCache app.QuizCache
	)
	if pool != nil {
		ledger = pginfra.NewAttemptLedger(pool)
		settings = pginfra.NewSettingsStore(pool)
		quizStore := pginfra.NewQuizStore(pool)
		quizAdmin = quizStore
		if redisClient != nil {
			cache := redisinfra.NewQuizCache(redisClient, quizStore, quizTTL)
			quizRepo = cache
			quizCache = cache
		} else {
			cache := memory.NewQuizRepository(quizStore, quizTTL)
			quizRepo = cache
			quizCache = cache
		}
	} else {
		// Database-less mode: sample content, everything in memory.
		ledger = memory.NewAttemptLedger()
		settings = memory.NewSettingsStore()
		quizStore := memory.NewStaticQuizStore(sampleQuizzes())
		quizAdmin = quizStore
		cache := memory.NewQuizRepository(quizStore, quizTTL)
		quizRepo = cache
		quizCache = cache
		log.Warn("no postgres configured, using in-memory stores with sample quizzes")
	}

	watch := app.NewLeaderboardWatch()
	boards := app.NewLeaderboardService(ledger, quizRepo, settings, watch)
	attempts := app.NewAttemptService(ledger, quizRepo, boards, cfg.Attempts.RequireIdentity, log)

	var directory app.UserDirectory
	if len(cfg.Auth.Directory) > 0 {
		directory = app.StaticUserDirectory(cfg.Auth.Directory)
	}
	reconciler := app.NewReconciler(ledger, directory, log)
	auth := app.NewStaticAuthenticator(cfg.Auth.AdminTokens, cfg.Auth.UserTokens)

	api := transport.NewAPI(attempts, boards, reconciler, quizAdmin, quizCache, settings, auth, watch, log)
	mux := http.NewServeMux()
	api.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting attempt service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides minimal demo content for database-less runs.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:              "quiz-1",
			Title:           "Getting started",
			ShowLeaderboard: true,
			Questions: []domain.Question{
				{
					Prompt:       "What is 2 + 2?",
					Options:      []string{"3", "4", "5"},
					CorrectIndex: 1,
				},
				{
					Prompt:       "What is 3 x 3?",
					Options:      []string{"9", "6", "12"},
					CorrectIndex: 0,
				},
			},
		},
	}
}
