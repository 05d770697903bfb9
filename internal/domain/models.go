package domain

import (
	"encoding/json"
	"fmt"
)

// Status is the session phase; it alone decides which host commands and UI rules apply.
type Status string

const (
	StatusLobby           Status = "lobby"
	StatusInProgress      Status = "in-progress"
	StatusQuestionResults Status = "question-results"
	StatusLeaderboard     Status = "leaderboard"
	StatusFinished        Status = "finished"
)

// Valid reports whether s is one of the known phases.
func (s Status) Valid() bool {
	switch s {
	case StatusLobby, StatusInProgress, StatusQuestionResults, StatusLeaderboard, StatusFinished:
		return true
	}
	return false
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !Status(raw).Valid() {
		return fmt.Errorf("unknown status %q", raw)
	}
	*s = Status(raw)
	return nil
}

// OptionCount is the number of options every question carries.
const OptionCount = 4

// Question models a multiple-choice question. It is never mutated after generation.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Validate checks the question has text, four distinct non-empty options and a correct
// answer that matches one of them.
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w: %d options, want %d", ErrInvalidQuestion, len(q.Options), OptionCount)
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if o == "" {
			return fmt.Errorf("%w: empty option", ErrInvalidQuestion)
		}
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidQuestion, o)
		}
		seen[o] = struct{}{}
	}
	if !q.HasOption(q.CorrectAnswer) {
		return fmt.Errorf("%w: correct answer %q is not an option", ErrInvalidQuestion, q.CorrectAnswer)
	}
	return nil
}

// Player is a connected participant, keyed by its transport peer id.
type Player struct {
	Name string `json:"name"`
}

// Answer is a player's choice for one question. SubmittedAt is epoch millis from the player.
type Answer struct {
	Option      string `json:"option"`
	SubmittedAt int64  `json:"submittedAt"`
}

// GameState is the canonical, host-owned session state. It is broadcast verbatim.
type GameState struct {
	Status               Status                    `json:"status"`
	Questions            []Question                `json:"questions"`
	CurrentQuestionIndex int                       `json:"currentQuestionIndex"`
	PlayerAnswers        map[int]map[string]Answer `json:"playerAnswers"`
	Scores               map[string]int            `json:"scores"`
	PreviousScores       map[string]int            `json:"previousScores"`
	Players              map[string]Player         `json:"players"`
	QuestionStartTime    *int64                    `json:"questionStartTime"`
	ShowResults          bool                      `json:"showResults"`

	// Seq increases by one for every published snapshot.
	Seq uint64 `json:"seq"`
	// Remaining is the countdown value when the snapshot was taken.
	Remaining int `json:"remaining"`
}

// NewGameState returns an empty lobby.
func NewGameState() GameState {
	return GameState{
		Status:        StatusLobby,
		Questions:     []Question{},
		PlayerAnswers: make(map[int]map[string]Answer),
		Scores:        make(map[string]int),
		Players:       make(map[string]Player),
	}
}

// CurrentQuestion returns the active question, if the index points at one.
func (s GameState) CurrentQuestion() (Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// IsLastQuestion reports whether the current index is the final one.
func (s GameState) IsLastQuestion() bool {
	return s.CurrentQuestionIndex >= len(s.Questions)-1
}

// AnswersFor returns the answers recorded for a question index (nil when none).
func (s GameState) AnswersFor(index int) map[string]Answer {
	return s.PlayerAnswers[index]
}

// Clone returns a deep copy so a published snapshot never shares maps with live state.
func (s GameState) Clone() GameState {
	out := s
	out.Questions = append([]Question(nil), s.Questions...)
	if out.Questions == nil {
		out.Questions = []Question{}
	}
	out.PlayerAnswers = make(map[int]map[string]Answer, len(s.PlayerAnswers))
	for idx, answers := range s.PlayerAnswers {
		cp := make(map[string]Answer, len(answers))
		for id, a := range answers {
			cp[id] = a
		}
		out.PlayerAnswers[idx] = cp
	}
	out.Scores = copyScores(s.Scores)
	if out.Scores == nil {
		out.Scores = make(map[string]int)
	}
	out.PreviousScores = copyScores(s.PreviousScores)
	out.Players = make(map[string]Player, len(s.Players))
	for id, p := range s.Players {
		out.Players[id] = p
	}
	if s.QuestionStartTime != nil {
		start := *s.QuestionStartTime
		out.QuestionStartTime = &start
	}
	return out
}

func copyScores(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// LeaderboardEntry is a ranked view of one score.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Delta    int    `json:"delta"`
}
