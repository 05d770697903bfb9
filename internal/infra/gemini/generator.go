// Package gemini generates quiz questions with the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"livequiz/internal/app"
	"livequiz/internal/domain"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-2.5-flash"
	defaultTimeout  = 30 * time.Second
	temperature     = 0.7
	maxErrorBody    = 512
)

// Config selects the model and endpoint. Zero Model, Endpoint and Timeout take defaults.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Generator asks the model for a question set. Three consecutive failures open a circuit
// breaker for 30 seconds.
type Generator struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewGenerator fails with domain.ErrMissingAPIKey when cfg has no API key.
func NewGenerator(cfg Config, log zerolog.Logger) (*Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, domain.ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	log = log.With().Str("component", "gemini").Str("model", cfg.Model).Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "gemini",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return &Generator{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		log:     log,
	}, nil
}

// Generate requests req.Count questions. While the breaker is open it fails with
// gobreaker.ErrOpenState without calling the API.
func (g *Generator) Generate(ctx context.Context, req app.GenerateRequest) ([]domain.Question, error) {
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Prompt builds the instruction text. With context the questions come from the supplied text and
// the topic becomes the quiz title.
func Prompt(req app.GenerateRequest) string {
	const rules = "The difficulty should gradually increase. Ensure each question has 4 options and one correct answer. " +
		"The correct answer must exactly match one of the options."
	if strings.TrimSpace(req.Context) != "" {
		return fmt.Sprintf("Based on the following context, generate %d challenging multiple-choice questions for a quiz game. "+
			"The quiz title is %q. %s\n\nContext:\n%s", req.Count, req.Topic, rules, req.Context)
	}
	return fmt.Sprintf("Generate %d challenging multiple-choice questions for a quiz game based on the topic: %q. %s",
		req.Count, req.Topic, rules)
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
	Temperature      float64        `json:"temperature"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"questions": map[string]any{
			"type":        "ARRAY",
			"description": "A list of quiz questions.",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"question": map[string]any{"type": "STRING", "description": "The question text."},
					"options": map[string]any{
						"type":        "ARRAY",
						"description": "An array of 4 possible answers.",
						"items":       map[string]any{"type": "STRING"},
					},
					"correctAnswer": map[string]any{
						"type":        "STRING",
						"description": "The correct answer, which must be one of the provided options.",
					},
				},
				"required": []string{"question", "options", "correctAnswer"},
			},
		},
	},
	"required": []string{"questions"},
}

func (g *Generator) generate(ctx context.Context, req app.GenerateRequest) ([]domain.Question, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: Prompt(req)}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
			Temperature:      temperature,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(g.cfg.Endpoint, "/"), g.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.cfg.APIKey)

	started := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var payload struct {
		Questions []domain.Question `json:"questions"`
	}
	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("decode question payload: %w", err)
	}
	if payload.Questions == nil {
		return nil, fmt.Errorf("question payload has no questions field")
	}
	g.log.Debug().Int("questions", len(payload.Questions)).Dur("took", time.Since(started)).Msg("generation finished")
	return payload.Questions, nil
}
