package cli

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-session-service/internal/config"
	"trivia-session-service/internal/infra/memory"
	"trivia-session-service/internal/infra/postgres"
	infraredis "trivia-session-service/internal/infra/redis"
	"trivia-session-service/internal/logging"
)

// NewSeedCmd upserts a YAML question file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert questions from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.New(appName, cfg.Log.Env, cfg.Log.Level)
			if cfg.Postgres.URL == "" {
				return errPostgresNotConfigured
			}
			if file == "" {
				file = cfg.Questions.File
			}
			questions, err := memory.ReadQuestionFile(file)
			if err != nil {
				return err
			}

			db := postgres.OpenBun(cfg.Postgres.URL)
			defer db.Close()
			if _, err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			n, err := postgres.NewSeeder(db).Seed(ctx, questions)
			if err != nil {
				return fmt.Errorf("seed %s: %w", file, err)
			}
			logger.Info().Str("file", file).Int("rows", n).Msg("questions seeded")

			// Servers sharing this redis would otherwise keep serving the old bank until the TTL lapses.
			if cfg.Redis.Addr != "" {
				client := newRedisClient(cfg)
				defer client.Close()
				cache := infraredis.NewQuestionCache(client, nil, config.Duration(cfg.Questions.TTL, 10*time.Minute), logger)
				if err := cache.Invalidate(ctx); err != nil {
					logger.Warn().Err(err).Msg("question cache invalidation failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML question file (defaults to questions.file from config)")
	return cmd
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
