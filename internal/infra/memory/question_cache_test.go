package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"livequiz/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	cache := NewQuestionCache(time.Minute)
	calls := 0
	load := func(context.Context) ([]domain.Question, error) {
		calls++
		return SampleQuestions()["General Knowledge"][:2], nil
	}

	for i := 0; i < 2; i++ {
		qs, err := cache.GetQuestions(context.Background(), "k", load)
		if err != nil {
			t.Fatalf("get questions: %v", err)
		}
		if len(qs) != 2 {
			t.Fatalf("expected 2 questions, got %d", len(qs))
		}
	}
	if calls != 1 {
		t.Fatalf("expected loader once, got %d", calls)
	}
}

func TestQuestionCacheExpiresAndSkipsFailures(t *testing.T) {
	cache := NewQuestionCache(time.Minute)
	now := time.Unix(1000, 0)
	cache.clock = func() time.Time { return now }

	boom := errors.New("boom")
	if _, err := cache.GetQuestions(context.Background(), "k", func(context.Context) ([]domain.Question, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}

	calls := 0
	load := func(context.Context) ([]domain.Question, error) {
		calls++
		return SampleQuestions()["General Knowledge"], nil
	}
	if _, err := cache.GetQuestions(context.Background(), "k", load); err != nil {
		t.Fatalf("get: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.GetQuestions(context.Background(), "k", load); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", calls)
	}
}
