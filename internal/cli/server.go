package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crisis-quiz-service/internal/app"
	"crisis-quiz-service/internal/auth"
	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/infra/gemini"
	"crisis-quiz-service/internal/infra/memory"
	"crisis-quiz-service/internal/infra/postgres"
	infraredis "crisis-quiz-service/internal/infra/redis"
	transport "crisis-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	config.InitLogger(cfg.Log.Level, cfg.Log.Format)
	log := config.Logger

	if cfg.Postgres.URL != "" {
		if err := RunMigrations(ctx, cfg.Postgres.URL); err != nil {
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

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	embedder, err := gemini.NewEmbedder(ctx, cfg.Generator.PrimaryKey, cfg.Generator.EmbeddingModel,
		config.TTLDuration(cfg.Generator.Timeout, 30*time.Second))
	if err != nil {
		return err
	}

	tokenTTL := config.TTLDuration(cfg.Auth.TokenTTL, 7*24*time.Hour)
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, tokenTTL)
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	roomTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	rateWindow := config.TTLDuration(cfg.Questions.RateWindow, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		cache   app.QuestionCache
		limiter app.RateLimiter
		rooms   app.RoomRepository
	)
	if redisClient != nil {
		cache = infraredis.NewQuestionCache(redisClient, cacheTTL)
		limiter = infraredis.NewRateLimiter(redisClient, cfg.Questions.RateLimit, rateWindow)
		rooms = infraredis.NewRoomStore(redisClient, roomTTL)
	} else {
		cache = memory.NewQuestionCache(cacheTTL)
		limiter = memory.NewRateLimiter(cfg.Questions.RateLimit, rateWindow)
		rooms = memory.NewRoomStore()
	}

	var (
		users   app.UserRepository
		archive app.QuestionArchive
	)
	if pool != nil {
		users = postgres.NewUserStore(pool)
		archive = postgres.NewQuestionArchive(pool)
	} else {
		log.Warn("postgres url not configured, users and archived questions are kept in memory")
		users = memory.NewUserStore()
		archive = memory.NewQuestionArchive()
	}

	questions := app.NewQuestionService(generator, cache, limiter, archive)
	router := transport.NewRouter(transport.RouterConfig{
		Questions: questions,
		Policy:    app.NewPolicyService(generator, embedder),
		Accounts:  app.NewAccountService(users, issuer),
		Rooms:     app.NewRoomService(rooms, questions),
		Issuer:    issuer,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Infof("starting crisis quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newGenerator wires the primary Gemini key and, when configured, the fallback key.
func newGenerator(ctx context.Context, cfg config.Config) (app.TextGenerator, error) {
	timeout := config.TTLDuration(cfg.Generator.Timeout, 30*time.Second)
	primary, err := gemini.NewGenerator(ctx, "primary", cfg.Generator.PrimaryKey, cfg.Generator.Model, timeout)
	if err != nil {
		return nil, err
	}
	if cfg.Generator.FallbackKey == "" {
		return app.NewFallbackGenerator(primary, nil), nil
	}
	fallback, err := gemini.NewGenerator(ctx, "fallback", cfg.Generator.FallbackKey, cfg.Generator.Model, timeout)
	if err != nil {
		return nil, err
	}
	return app.NewFallbackGenerator(primary, fallback), nil
}
