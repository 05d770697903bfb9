package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"livequiz/internal/domain"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewQuestionCache(newClient(mr), time.Minute, zerolog.Nop())
	calls := 0
	load := func(context.Context) ([]domain.Question, error) {
		calls++
		return sampleQuestions(), nil
	}

	if _, err := cache.GetQuestions(context.Background(), "k1", load); err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if !mr.Exists("quiz:questions:k1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:questions:k1"); ttl < time.Minute {
		t.Fatalf("expected ttl of at least a minute, got %v", ttl)
	}

	// a second cache instance shares the entry
	other := NewQuestionCache(newClient(mr), time.Minute, zerolog.Nop())
	qs, err := other.GetQuestions(context.Background(), "k1", load)
	if err != nil {
		t.Fatalf("get questions 2: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", calls)
	}
	if len(qs) != 1 || qs[0].CorrectAnswer != "4" {
		t.Fatalf("unexpected cached questions %+v", qs)
	}
}

func TestQuestionCacheDoesNotStoreFailures(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewQuestionCache(newClient(mr), time.Minute, zerolog.Nop())
	boom := errors.New("boom")
	_, err = cache.GetQuestions(context.Background(), "k1", func(context.Context) ([]domain.Question, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if mr.Exists("quiz:questions:k1") {
		t.Fatalf("failed load must not be cached")
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: "4"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
