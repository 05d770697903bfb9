package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livequiz/internal/domain"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9090\"\ngenerator:\n  kind: static\ngame:\n  question_seconds: 10\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Game.QuestionSeconds != 10 || cfg.Game.MaxPoints != 1000 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Generator.Gemini.APIKey != "from-env" {
		t.Fatalf("expected env key, got %q", cfg.Generator.Gemini.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateFailsFast(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = "http"
	cfg.Game.Tick = "soon"
	err := cfg.Validate()
	if !errors.Is(err, domain.ErrMissingAPIKey) {
		t.Fatalf("expected missing api key, got %v", err)
	}
	for _, want := range []string{"server.port", "game.tick"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}

	cfg = Default()
	cfg.Generator.Kind = GeneratorPostgres
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "postgres.url") {
		t.Fatalf("expected postgres url error, got %v", err)
	}
	cfg.Generator.Kind = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown generator error")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bad", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on bad input, got %v", got)
	}
	if got := TTLDuration("5s", time.Minute); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
}
