package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"livequiz/internal/app"
	"livequiz/internal/config"
	"livequiz/internal/infra/gemini"
	"livequiz/internal/infra/memory"
	"livequiz/internal/infra/postgres"
	redisinfra "livequiz/internal/infra/redis"
	"livequiz/internal/infra/sqlite"
	"livequiz/internal/metrics"
)

type closer func() error

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func gameConfig(cfg config.Config) app.GameConfig {
	return app.GameConfig{
		QuestionSeconds: cfg.Game.QuestionSeconds,
		Tick:            config.TTLDuration(cfg.Game.Tick, time.Second),
		MaxPoints:       cfg.Game.MaxPoints,
		LeaderboardSize: cfg.Game.LeaderboardSize,
	}
}

func newRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// buildContent selects the configured question source and puts a cache in front of it: Redis
// when configured, otherwise an in-process cache.
func buildContent(ctx context.Context, cfg config.Config, rdb *redis.Client, log zerolog.Logger, collector metrics.GameCollector) (*app.QuestionService, closer, error) {
	noop := func() error { return nil }
	var (
		source  app.Generator
		release closer = noop
	)

	kind := strings.ToLower(cfg.Generator.Kind)
	switch kind {
	case config.GeneratorGemini:
		gen, err := gemini.NewGenerator(gemini.Config{
			APIKey:   cfg.Generator.Gemini.APIKey,
			Model:    cfg.Generator.Gemini.Model,
			Endpoint: cfg.Generator.Gemini.Endpoint,
			Timeout:  config.TTLDuration(cfg.Generator.Gemini.Timeout, 30*time.Second),
		}, log)
		if err != nil {
			return nil, noop, err
		}
		source = gen
	case config.GeneratorPostgres:
		pool, err := postgres.OpenPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, noop, err
		}
		source = postgres.NewQuestionBank(pool)
		release = func() error { pool.Close(); return nil }
	case config.GeneratorSQLite:
		bank, err := sqlite.Open(cfg.SQLite.Path, log)
		if err != nil {
			return nil, noop, err
		}
		source = bank
		release = bank.Close
	case config.GeneratorStatic:
		source = memory.NewStaticGenerator(memory.SampleQuestions())
	default:
		return nil, noop, fmt.Errorf("unknown generator kind %q", cfg.Generator.Kind)
	}

	ttl := config.TTLDuration(cfg.Generator.CacheTTL, time.Hour)
	var cache app.QuestionCache
	if rdb != nil {
		cache = redisinfra.NewQuestionCache(rdb, ttl, log)
	} else {
		cache = memory.NewQuestionCache(ttl)
	}
	return app.NewQuestionService(kind, source, cache, log, collector), release, nil
}

// buildRegistry publishes session codes in Redis when configured so players can join by code
// alone. Without Redis codes are only unique within this process.
func buildRegistry(cfg config.Config, rdb *redis.Client) app.CodeRegistry {
	ttl := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)
	if rdb != nil {
		return redisinfra.NewCodeRegistry(rdb, ttl)
	}
	return memory.NewCodeRegistry(ttl)
}
