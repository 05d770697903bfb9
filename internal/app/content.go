package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"livequiz/internal/domain"
	"livequiz/internal/metrics"
)

const (
	MinQuestions = 1
	MaxQuestions = 20
	// DefaultTopic is used when the host asks for questions without naming a topic.
	DefaultTopic = "General Knowledge"
)

// GenerateRequest describes the question set a host wants.
type GenerateRequest struct {
	Topic   string
	Count   int
	Context string
}

// Normalize trims the topic, applies the default topic and clamps Count to [1, 20].
func (r GenerateRequest) Normalize() GenerateRequest {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		r.Topic = DefaultTopic
	}
	if r.Count < MinQuestions {
		r.Count = MinQuestions
	}
	if r.Count > MaxQuestions {
		r.Count = MaxQuestions
	}
	return r
}

// CacheKey identifies a request for question caches.
func (r GenerateRequest) CacheKey() string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(r.Topic)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(r.Count)))
	h.Write([]byte{0})
	h.Write([]byte(r.Context))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Generator produces an ordered question set (LLM, question bank, static fixtures).
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]domain.Question, error)
}

// QuestionCache returns cached questions for key or fills the entry with load.
// Failed loads are never cached.
type QuestionCache interface {
	GetQuestions(ctx context.Context, key string, load func(ctx context.Context) ([]domain.Question, error)) ([]domain.Question, error)
}

// QuestionService validates and caches generated question sets.
type QuestionService struct {
	name    string
	source  Generator
	cache   QuestionCache
	log     zerolog.Logger
	metrics metrics.GameCollector
}

// NewQuestionService wraps source. cache may be nil.
func NewQuestionService(name string, source Generator, cache QuestionCache, log zerolog.Logger, collector metrics.GameCollector) *QuestionService {
	return &QuestionService{
		name:    name,
		source:  source,
		cache:   cache,
		log:     log.With().Str("component", "content").Str("source", name).Logger(),
		metrics: collector,
	}
}

// Generate returns a validated question set. Any failure wraps domain.ErrGenerationFailed.
func (s *QuestionService) Generate(ctx context.Context, req GenerateRequest) ([]domain.Question, error) {
	req = req.Normalize()
	started := time.Now()

	load := func(ctx context.Context) ([]domain.Question, error) {
		questions, err := s.source.Generate(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := validateQuestions(questions); err != nil {
			return nil, err
		}
		return questions, nil
	}

	var (
		questions []domain.Question
		err       error
	)
	if s.cache != nil {
		questions, err = s.cache.GetQuestions(ctx, req.CacheKey(), load)
	} else {
		questions, err = load(ctx)
	}
	s.metrics.GenerationFinished(s.name, time.Since(started), err)
	if err != nil {
		s.log.Warn().Err(err).Str("topic", req.Topic).Int("count", req.Count).Msg("question generation failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	s.log.Info().Str("topic", req.Topic).Int("count", len(questions)).Dur("took", time.Since(started)).Msg("questions ready")
	return questions, nil
}

func validateQuestions(questions []domain.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: empty question set", domain.ErrInvalidQuestion)
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}
