package memory

import (
	"context"
	"sort"
	"strings"

	"livequiz/internal/app"
	"livequiz/internal/domain"
)

// StaticGenerator serves fixed question sets keyed by topic (tests, demos and offline play).
type StaticGenerator struct {
	topics map[string][]domain.Question
}

// NewStaticGenerator indexes sets by lower-cased topic.
func NewStaticGenerator(topics map[string][]domain.Question) *StaticGenerator {
	index := make(map[string][]domain.Question, len(topics))
	for topic, qs := range topics {
		index[strings.ToLower(strings.TrimSpace(topic))] = qs
	}
	return &StaticGenerator{topics: index}
}

// Generate returns up to req.Count questions for the topic. An unknown topic falls back to the
// first topic in alphabetical order so the generator always has something to play.
func (g *StaticGenerator) Generate(_ context.Context, req app.GenerateRequest) ([]domain.Question, error) {
	qs, ok := g.topics[strings.ToLower(req.Topic)]
	if !ok {
		keys := make([]string, 0, len(g.topics))
		for k := range g.topics {
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			return nil, domain.ErrQuestionsNotFound
		}
		sort.Strings(keys)
		qs = g.topics[keys[0]]
	}
	if req.Count > 0 && req.Count < len(qs) {
		qs = qs[:req.Count]
	}
	if len(qs) == 0 {
		return nil, domain.ErrQuestionsNotFound
	}
	return append([]domain.Question(nil), qs...), nil
}

// SampleQuestions is a small built-in set used when no other content source is configured.
func SampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		app.DefaultTopic: {
			{
				Text:          "What is the capital of France?",
				Options:       []string{"Berlin", "Madrid", "Paris", "Rome"},
				CorrectAnswer: "Paris",
			},
			{
				Text:          "How many continents are there?",
				Options:       []string{"5", "6", "7", "8"},
				CorrectAnswer: "7",
			},
			{
				Text:          "Which planet is known as the Red Planet?",
				Options:       []string{"Venus", "Mars", "Jupiter", "Mercury"},
				CorrectAnswer: "Mars",
			},
			{
				Text:          "What is the chemical symbol for gold?",
				Options:       []string{"Ag", "Au", "Gd", "Go"},
				CorrectAnswer: "Au",
			},
			{
				Text:          "Who wrote Romeo and Juliet?",
				Options:       []string{"Charles Dickens", "Jane Austen", "William Shakespeare", "Mark Twain"},
				CorrectAnswer: "William Shakespeare",
			},
		},
	}
}
