package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"livequiz/internal/app"
	"livequiz/internal/domain"
	"livequiz/internal/infra/postgres"
	infraredis "livequiz/internal/infra/redis"
)

func TestQuestionBankEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := postgres.OpenBun(pgURL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	n, err := postgres.NewBankWriter(db).Import(ctx, "Geography", sampleQuestions())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 3 {
		t.Fatalf("imported %d questions, want 3", n)
	}

	pool, err := postgres.OpenPool(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	bank := postgres.NewQuestionBank(pool)

	qs, err := bank.Generate(ctx, app.GenerateRequest{Topic: "geography", Count: 2})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			t.Fatalf("stored question invalid: %v", err)
		}
	}

	if _, err := bank.Generate(ctx, app.GenerateRequest{Topic: "astronomy", Count: 2}); !errors.Is(err, domain.ErrQuestionsNotFound) {
		t.Fatalf("expected ErrQuestionsNotFound, got %v", err)
	}
}

func TestRedisRegistryAndCache(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	client, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer client.Close()

	reg := infraredis.NewCodeRegistry(client, time.Minute)
	code, err := app.ClaimSessionCode(ctx, reg, "http://10.0.0.5:8080", 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	addr, err := reg.Resolve(ctx, code)
	if err != nil || addr != "http://10.0.0.5:8080" {
		t.Fatalf("resolve = %q, %v", addr, err)
	}
	if err := reg.Claim(ctx, code, "http://elsewhere"); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
	if err := reg.Release(ctx, code); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := reg.Resolve(ctx, code); !errors.Is(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after release, got %v", err)
	}

	cache := infraredis.NewQuestionCache(client, time.Minute, zerolog.Nop())
	loads := 0
	load := func(context.Context) ([]domain.Question, error) {
		loads++
		return sampleQuestions(), nil
	}
	for i := 0; i < 2; i++ {
		qs, err := cache.GetQuestions(ctx, "geography|3|", load)
		if err != nil {
			t.Fatalf("get questions: %v", err)
		}
		if len(qs) != 3 {
			t.Fatalf("got %d questions, want 3", len(qs))
		}
	}
	if loads != 1 {
		t.Fatalf("loader called %d times, want 1", loads)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "Capital of France?", Options: []string{"Paris", "Rome", "Madrid", "Berlin"}, CorrectAnswer: "Paris"},
		{Text: "Longest river in Africa?", Options: []string{"Congo", "Nile", "Niger", "Zambezi"}, CorrectAnswer: "Nile"},
		{Text: "Largest ocean?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, CorrectAnswer: "Pacific"},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
