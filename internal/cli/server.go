package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-session-service/internal/app"
	"trivia-session-service/internal/config"
	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/infra/memory"
	"trivia-session-service/internal/infra/postgres"
	infraredis "trivia-session-service/internal/infra/redis"
	"trivia-session-service/internal/logging"
	"trivia-session-service/internal/metrics"
	"trivia-session-service/internal/transport/ws"
)

const appName = "trivia-session-service"

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia session server",
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
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	logger := logging.New(appName, cfg.Log.Env, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The cache is best effort; the engine keeps running on the in-process store.
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable at startup")
		}
	}

	loader, closeLoader, err := buildQuestionLoader(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeLoader()
	bank := memory.NewQuestionBank(loader, config.Duration(cfg.Questions.TTL, 10*time.Minute), logger)

	var cache memory.Cache
	if redisClient != nil {
		cache = infraredis.NewCache(redisClient, m, logger)
	}
	store := memory.NewSessionStore(cache, config.Duration(cfg.Redis.TTL, 2*time.Hour), logger)

	registry := ws.NewRegistry(logger)
	engineOpts := []app.EngineOption{app.WithMetrics(m)}
	if redisClient != nil && cfg.Redis.Publish {
		engineOpts = append(engineOpts, app.WithPublisher(infraredis.NewPublisher(redisClient, cfg.Redis.ChannelPrefix, logger)))
	}
	engine := app.NewEngine(store, bank, registry, gameOptions(cfg), logger, engineOpts...)
	defer engine.Close()

	// Fail fast on an unusable bank rather than on the first start_game.
	if _, err := bank.List(ctx); err != nil {
		return err
	}

	gateway := ws.NewGateway(engine, cfg.Server.AllowedOrigins, m, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", gateway.ServeWS)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("starting trivia session server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildQuestionLoader picks Postgres, then the YAML file, then the built-in sample,
// and puts the Redis cache in front when Redis is configured.
func buildQuestionLoader(ctx context.Context, cfg config.Config, client *redis.Client, logger zerolog.Logger) (memory.QuestionLoader, func(), error) {
	var loader memory.QuestionLoader
	closeFn := func() {}

	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		closeFn = pool.Close
		loader = postgres.NewQuestionLoader(pool)
		logger.Info().Msg("question bank: postgres")
	case cfg.Questions.File != "":
		loader = memory.NewFileQuestionLoader(cfg.Questions.File)
		logger.Info().Str("file", cfg.Questions.File).Msg("question bank: file")
	default:
		loader = memory.NewStaticQuestionLoader(sampleQuestions())
		logger.Warn().Msg("question bank: built-in sample")
	}

	if client != nil {
		loader = infraredis.NewQuestionCache(client, loader, config.Duration(cfg.Questions.TTL, 10*time.Minute), logger)
	}
	return loader, closeFn, nil
}

func gameOptions(cfg config.Config) app.Options {
	defaults := app.DefaultOptions()
	return app.Options{
		RoundDuration:      config.Duration(cfg.Game.RoundDuration, defaults.RoundDuration),
		DefaultTotalRounds: cfg.Game.DefaultTotalRounds,
		RosterPreviewLimit: cfg.Game.RosterPreviewLimit,
		AutoAdvanceDelay:   config.Duration(cfg.Game.AutoAdvanceDelay, 0),
	}
}

// sampleQuestions keeps the server usable with no database or question file.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectOptionIndex: 1, Category: "math"},
		{ID: 2, Prompt: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Jupiter", "Mars", "Mercury"}, CorrectOptionIndex: 2, Category: "science"},
		{ID: 3, Prompt: "What is the largest ocean on Earth?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectOptionIndex: 3, Category: "geography"},
		{ID: 4, Prompt: "How many legs does a spider have?", Options: []string{"8", "6", "10", "12"}, CorrectOptionIndex: 0, Category: "nature"},
	}
}
