package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"livequiz/internal/app"
	"livequiz/internal/domain"
	"livequiz/internal/scoring"
)

var optionLabels = []string{"A", "B", "C", "D"}

// hostRenderer prints the host dashboard. It only prints what changed since the previous snapshot.
type hostRenderer struct {
	out             io.Writer
	code            string
	leaderboardSize int
	last            *domain.GameState
}

func (r *hostRenderer) render(s domain.GameState) {
	prev := r.last
	r.last = &s

	phaseChanged := prev == nil || prev.Status != s.Status || prev.CurrentQuestionIndex != s.CurrentQuestionIndex
	if phaseChanged {
		r.renderPhase(s)
		return
	}
	if !samePlayers(prev.Players, s.Players) {
		fmt.Fprintf(r.out, "players (%d): %s\n", len(s.Players), playerNames(s.Players))
	}
	if len(prev.Questions) != len(s.Questions) && s.Status == domain.StatusLobby {
		fmt.Fprintf(r.out, "%d questions ready, type 'start' to begin\n", len(s.Questions))
	}
	if s.Status == domain.StatusInProgress {
		answered, was := len(s.AnswersFor(s.CurrentQuestionIndex)), len(prev.AnswersFor(prev.CurrentQuestionIndex))
		if answered != was {
			fmt.Fprintf(r.out, "answers: %d/%d\n", answered, len(s.Players))
		}
	}
}

func (r *hostRenderer) renderPhase(s domain.GameState) {
	switch s.Status {
	case domain.StatusLobby:
		fmt.Fprintf(r.out, "== lobby %s == players (%d): %s | questions: %d\n",
			r.code, len(s.Players), playerNames(s.Players), len(s.Questions))
	case domain.StatusInProgress:
		q, _ := s.CurrentQuestion()
		fmt.Fprintf(r.out, "== question %d/%d ==\n", s.CurrentQuestionIndex+1, len(s.Questions))
		writeQuestion(r.out, q)
	case domain.StatusQuestionResults:
		q, _ := s.CurrentQuestion()
		fmt.Fprintf(r.out, "== time is up == correct answer: %s\n", q.CorrectAnswer)
		for _, t := range scoring.Tally(q, s.AnswersFor(s.CurrentQuestionIndex)) {
			mark := " "
			if t.Correct {
				mark = "*"
			}
			fmt.Fprintf(r.out, " %s %-30s %s %d\n", mark, t.Option, strings.Repeat("#", t.Votes), t.Votes)
		}
		fmt.Fprintln(r.out, "type 'leaderboard' to score the question")
	case domain.StatusLeaderboard:
		fmt.Fprintln(r.out, "== leaderboard ==")
		writeLeaderboard(r.out, s, r.leaderboardSize)
		if s.IsLastQuestion() {
			fmt.Fprintln(r.out, "type 'finish' (or 'next') to end the game")
		} else {
			fmt.Fprintln(r.out, "type 'next' for the next question")
		}
	case domain.StatusFinished:
		fmt.Fprintln(r.out, "== final results ==")
		writeLeaderboard(r.out, s, r.leaderboardSize)
		fmt.Fprintln(r.out, "type 'reset' to return to the lobby")
	}
}

// playerRenderer prints a player's screen from its view.
type playerRenderer struct {
	out  io.Writer
	last *domain.GameState
}

func (r *playerRenderer) render(view app.PlayerView) {
	s, ok := view.State()
	if !ok {
		fmt.Fprintln(r.out, "connecting...")
		return
	}
	prev := r.last
	r.last = &s
	if prev != nil && prev.Status == s.Status && prev.CurrentQuestionIndex == s.CurrentQuestionIndex {
		return
	}

	switch s.Status {
	case domain.StatusLobby:
		fmt.Fprintf(r.out, "waiting for the host to start (%d players)\n", len(s.Players))
	case domain.StatusInProgress:
		q, _ := s.CurrentQuestion()
		fmt.Fprintf(r.out, "question %d/%d\n", s.CurrentQuestionIndex+1, len(s.Questions))
		writeQuestion(r.out, q)
		fmt.Fprintln(r.out, "answer with A-D")
	case domain.StatusQuestionResults:
		q, _ := s.CurrentQuestion()
		verdict := "no answer"
		if p := view.Pending(); p != "" {
			verdict = "wrong"
			if p == q.CorrectAnswer {
				verdict = "correct"
			}
		}
		fmt.Fprintf(r.out, "time is up: %s (answer: %s)\n", verdict, q.CorrectAnswer)
	case domain.StatusLeaderboard:
		fmt.Fprintf(r.out, "your score: %d\n", view.MyScore())
	case domain.StatusFinished:
		fmt.Fprintf(r.out, "game over, final score: %d\n", view.MyScore())
		if view.IsWinner() {
			fmt.Fprintln(r.out, "you won!")
		}
	}
}

// optionFor maps player input (a letter, a number or the option text) to an option.
func optionFor(q domain.Question, input string) (string, bool) {
	input = strings.TrimSpace(input)
	for i, label := range optionLabels {
		if i < len(q.Options) && (strings.EqualFold(input, label) || input == fmt.Sprint(i+1)) {
			return q.Options[i], true
		}
	}
	if q.HasOption(input) {
		return input, true
	}
	return "", false
}

func writeQuestion(w io.Writer, q domain.Question) {
	fmt.Fprintln(w, q.Text)
	for i, o := range q.Options {
		if i < len(optionLabels) {
			fmt.Fprintf(w, "  %s) %s\n", optionLabels[i], o)
		}
	}
}

func writeLeaderboard(w io.Writer, s domain.GameState, limit int) {
	for i, e := range scoring.Leaderboard(s.Scores, s.Players, s.PreviousScores, limit) {
		name := e.Name
		if name == "" {
			name = "(left)"
		}
		delta := ""
		if e.Delta > 0 {
			delta = fmt.Sprintf(" +%d", e.Delta)
		}
		fmt.Fprintf(w, "%2d. %-20s %6d%s\n", i+1, name, e.Score, delta)
	}
}

func playerNames(players map[string]domain.Player) string {
	if len(players) == 0 {
		return "-"
	}
	names := make([]string, 0, len(players))
	for _, p := range players {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func samePlayers(a, b map[string]domain.Player) bool {
	if len(a) != len(b) {
		return false
	}
	for id, p := range a {
		if q, ok := b[id]; !ok || q != p {
			return false
		}
	}
	return true
}
