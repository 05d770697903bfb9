package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"livequiz/internal/app"
	"livequiz/internal/domain"
	"livequiz/internal/infra/memory"
	"livequiz/internal/metrics"
)

func newTestConsole(t *testing.T) (*hostConsole, *bytes.Buffer) {
	t.Helper()
	network := memory.NewNetwork(zerolog.Nop())
	host, err := network.Listen("QZ1234")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	content := app.NewQuestionService("static",
		memory.NewStaticGenerator(memory.SampleQuestions()),
		memory.NewQuestionCache(time.Minute),
		zerolog.Nop(), metrics.NewNoopCollector())
	game := app.NewGame(host, content, app.DefaultGameConfig(), zerolog.Nop(), metrics.NewNoopCollector())

	ctx, cancel := context.WithCancel(context.Background())
	go game.Run(ctx)
	t.Cleanup(func() {
		cancel()
		game.Close()
	})
	out := &bytes.Buffer{}
	return newHostConsole(game, out), out
}

func TestConsoleGenerateAndStart(t *testing.T) {
	console, out := newTestConsole(t)
	ctx := context.Background()

	if _, err := console.exec(ctx, "start"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions before generating, got %v", err)
	}
	if _, err := console.exec(ctx, "count 3"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if _, err := console.exec(ctx, "generate"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := len(console.game.Snapshot().Questions); got != 3 {
		t.Fatalf("expected 3 questions installed, got %d", got)
	}
	if _, err := console.exec(ctx, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s := console.game.Snapshot(); s.Status != domain.StatusInProgress {
		t.Fatalf("expected in-progress, got %s", s.Status)
	}
	if _, err := console.exec(ctx, "next"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for next during a question, got %v", err)
	}
	if _, err := console.exec(ctx, "reset"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := console.exec(ctx, "status"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "status: lobby") {
		t.Fatalf("status output missing, got:\n%s", out.String())
	}
}

func TestConsoleCommandParsing(t *testing.T) {
	console, _ := newTestConsole(t)
	ctx := context.Background()

	if _, err := console.exec(ctx, "count many"); err == nil {
		t.Fatalf("expected error for non-numeric count")
	}
	if _, err := console.exec(ctx, "dance"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if quit, err := console.exec(ctx, "  "); quit || err != nil {
		t.Fatalf("blank line: quit=%v err=%v", quit, err)
	}
	if quit, _ := console.exec(ctx, "QUIT"); !quit {
		t.Fatalf("expected quit")
	}
	if _, err := console.exec(ctx, "topic  Space travel "); err != nil {
		t.Fatalf("topic: %v", err)
	}
	if console.req.Topic != "Space travel" {
		t.Fatalf("topic = %q", console.req.Topic)
	}
}

func TestConsoleContextFile(t *testing.T) {
	console, _ := newTestConsole(t)
	ctx := context.Background()
	dir := t.TempDir()

	notes := filepath.Join(dir, "photosynthesis.txt")
	if err := os.WriteFile(notes, []byte("Plants turn light into sugar."), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := console.exec(ctx, "context "+notes); err != nil {
		t.Fatalf("context: %v", err)
	}
	if console.req.Topic != "photosynthesis" || console.req.Context != "Plants turn light into sugar." {
		t.Fatalf("unexpected request %+v", console.req)
	}

	pdf := filepath.Join(dir, "slides.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := console.exec(ctx, "context "+pdf); err == nil {
		t.Fatalf("expected non-txt context file to be rejected")
	}
	if _, err := console.exec(ctx, "context"); err == nil {
		t.Fatalf("expected missing path to be rejected")
	}
}
