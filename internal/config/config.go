package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"livequiz/internal/domain"
)

const (
	GeneratorGemini   = "gemini"
	GeneratorPostgres = "postgres"
	GeneratorSQLite   = "sqlite"
	GeneratorStatic   = "static"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Bind string `yaml:"bind"`
		// PublicURL is the address players dial; defaults to http://localhost:<port>.
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`
	Game struct {
		QuestionSeconds int    `yaml:"question_seconds"`
		MaxPoints       int    `yaml:"max_points"`
		Tick            string `yaml:"tick"`
		LeaderboardSize int    `yaml:"leaderboard_size"`
	} `yaml:"game"`
	Generator struct {
		Kind     string `yaml:"kind"`
		CacheTTL string `yaml:"cache_ttl"`
		Gemini   struct {
			APIKey   string `yaml:"api_key"`
			Model    string `yaml:"model"`
			Endpoint string `yaml:"endpoint"`
			Timeout  string `yaml:"timeout"`
		} `yaml:"gemini"`
	} `yaml:"generator"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Game.QuestionSeconds = 20
	cfg.Game.MaxPoints = 1000
	cfg.Game.Tick = "1s"
	cfg.Game.LeaderboardSize = 10
	cfg.Generator.Kind = GeneratorGemini
	cfg.Generator.CacheTTL = "1h"
	cfg.Generator.Gemini.Timeout = "30s"
	cfg.Redis.TTL = "4h"
	cfg.SQLite.Path = "./livequiz.db"
	return cfg
}

// Load reads YAML config from path on top of the defaults. An empty path yields the defaults.
// GEMINI_API_KEY overrides the configured key.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Generator.Gemini.APIKey = key
	}
	return cfg, nil
}

// Validate reports every problem at once so a bad deployment fails before any session opens.
func (c Config) Validate() error {
	var errs *multierror.Error

	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("server.port %q is not a valid port", c.Server.Port))
	}
	if c.Game.QuestionSeconds < 1 {
		errs = multierror.Append(errs, fmt.Errorf("game.question_seconds must be positive"))
	}
	if c.Game.MaxPoints < 1 {
		errs = multierror.Append(errs, fmt.Errorf("game.max_points must be positive"))
	}
	for name, raw := range map[string]string{
		"game.tick":                c.Game.Tick,
		"generator.cache_ttl":      c.Generator.CacheTTL,
		"generator.gemini.timeout": c.Generator.Gemini.Timeout,
		"redis.ttl":                c.Redis.TTL,
	} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	switch strings.ToLower(c.Generator.Kind) {
	case GeneratorGemini:
		if strings.TrimSpace(c.Generator.Gemini.APIKey) == "" {
			errs = multierror.Append(errs, fmt.Errorf("generator.gemini.api_key: %w", domain.ErrMissingAPIKey))
		}
	case GeneratorPostgres:
		if c.Postgres.URL == "" {
			errs = multierror.Append(errs, fmt.Errorf("generator %q needs postgres.url", c.Generator.Kind))
		}
	case GeneratorSQLite:
		if c.SQLite.Path == "" {
			errs = multierror.Append(errs, fmt.Errorf("generator %q needs sqlite.path", c.Generator.Kind))
		}
	case GeneratorStatic:
	default:
		errs = multierror.Append(errs, fmt.Errorf("unknown generator kind %q", c.Generator.Kind))
	}
	return errs.ErrorOrNil()
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
