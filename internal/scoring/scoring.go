// Package scoring computes per-question awards and leaderboard views. Everything here is
// pure: inputs are never mutated and results are fresh maps.
package scoring

import (
	"math"
	"sort"
	"time"

	"livequiz/internal/domain"
)

const (
	// TimeLimit is how long a question accepts scoring answers.
	TimeLimit = 20 * time.Second
	// MaxPoints is the award for a correct answer at zero elapsed time.
	MaxPoints = 1000
	// LeaderboardSize is how many entries a leaderboard shows.
	LeaderboardSize = 10
)

// Award returns the points for one answer: a linear decay from maxPoints at the start time to
// zero at the limit. Wrong or late answers earn nothing.
func Award(correct string, answer domain.Answer, start int64, limit time.Duration, maxPoints int) int {
	if answer.Option != correct || limit <= 0 || maxPoints <= 0 {
		return 0
	}
	elapsed := float64(answer.SubmittedAt-start) / 1000
	limitSeconds := limit.Seconds()
	if elapsed > limitSeconds {
		return 0
	}
	points := int(math.Round(float64(maxPoints) * (limitSeconds - elapsed) / limitSeconds))
	if points > maxPoints {
		// stamped before the question started
		return maxPoints
	}
	if points < 0 {
		return 0
	}
	return points
}

// Input is everything settlement needs for one question.
type Input struct {
	CorrectAnswer string
	Answers       map[string]domain.Answer
	StartTime     int64
	TimeLimit     time.Duration
	MaxPoints     int
	Scores        map[string]int
}

// Result holds the pre-settlement snapshot, the new running totals and each player's award.
type Result struct {
	Previous map[string]int
	Scores   map[string]int
	Awards   map[string]int
}

// Settle adds each answer's award to the running scores. Players who answered without a
// score entry (late joiners) get one.
func Settle(in Input) Result {
	res := Result{
		Previous: make(map[string]int, len(in.Scores)),
		Scores:   make(map[string]int, len(in.Scores)),
		Awards:   make(map[string]int, len(in.Answers)),
	}
	for id, score := range in.Scores {
		res.Previous[id] = score
		res.Scores[id] = score
	}
	for id, answer := range in.Answers {
		award := Award(in.CorrectAnswer, answer, in.StartTime, in.TimeLimit, in.MaxPoints)
		res.Awards[id] = award
		res.Scores[id] += award
	}
	return res
}

// Leaderboard ranks scores descending. Equal scores are ordered by player id so the ranking
// does not depend on map iteration. Disconnected players keep their entry with an empty name.
// A limit <= 0 returns every entry.
func Leaderboard(scores map[string]int, players map[string]domain.Player, previous map[string]int, limit int) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(scores))
	for id, score := range scores {
		entry := domain.LeaderboardEntry{
			PlayerID: id,
			Name:     players[id].Name,
			Score:    score,
		}
		if previous != nil {
			entry.Delta = score - previous[id]
		}
		entries = append(entries, entry)
	}
	SortEntries(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// SortEntries orders entries by score descending, then player id ascending.
func SortEntries(entries []domain.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
}

// Deltas returns how much each score moved since previous.
func Deltas(previous, current map[string]int) map[string]int {
	out := make(map[string]int, len(current))
	for id, score := range current {
		out[id] = score - previous[id]
	}
	return out
}

// OptionTally is the vote count for one option.
type OptionTally struct {
	Option  string `json:"option"`
	Votes   int    `json:"votes"`
	Correct bool   `json:"correct"`
}

// Tally counts answers per option in the question's option order. Answers naming an option
// the question does not have are ignored.
func Tally(q domain.Question, answers map[string]domain.Answer) []OptionTally {
	out := make([]OptionTally, len(q.Options))
	index := make(map[string]int, len(q.Options))
	for i, o := range q.Options {
		out[i] = OptionTally{Option: o, Correct: o == q.CorrectAnswer}
		index[o] = i
	}
	for _, a := range answers {
		if i, ok := index[a.Option]; ok {
			out[i].Votes++
		}
	}
	return out
}
