package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"livequiz/internal/app"
	"livequiz/internal/domain"
)

func inProgress(seq uint64, index int) domain.GameState {
	s := domain.NewGameState()
	s.Status = domain.StatusInProgress
	s.Questions = twoQuestions()
	s.CurrentQuestionIndex = index
	s.Seq = seq
	return s
}

func TestPlayerViewSelect(t *testing.T) {
	view := app.NewPlayerView("me")
	if _, ok := view.Select("Paris", time.Now()); ok {
		t.Fatalf("select without a snapshot must fail")
	}

	lobby := domain.NewGameState()
	lobby.Seq = 1
	view.Apply(lobby)
	if _, ok := view.Select("Paris", time.Now()); ok {
		t.Fatalf("select in lobby must fail")
	}

	view.Apply(inProgress(2, 0))
	if _, ok := view.Select("Lyon", time.Now()); ok {
		t.Fatalf("select of an unknown option must fail")
	}
	payload, ok := view.Select("Paris", startedAt)
	if !ok {
		t.Fatalf("expected first answer to be accepted")
	}
	if payload.QuestionIndex != 0 || payload.Option != "Paris" || payload.SubmittedAt != startedAt.UnixMilli() {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if _, ok := view.Select("Rome", time.Now()); ok {
		t.Fatalf("second answer to one question must fail")
	}

	results := inProgress(3, 0)
	results.ShowResults = true
	view.Apply(results)
	if view.Pending() != "Paris" {
		t.Fatalf("pending answer must survive on the same question")
	}

	view.Apply(inProgress(4, 1))
	if view.Pending() != "" {
		t.Fatalf("pending answer must clear on a new question")
	}
	if _, ok := view.Select("4", time.Now()); !ok {
		t.Fatalf("expected answer on the new question")
	}
}

func TestPlayerViewIgnoresStaleSnapshots(t *testing.T) {
	view := app.NewPlayerView("me")
	view.Apply(inProgress(5, 1))
	if view.Apply(inProgress(4, 0)) {
		t.Fatalf("stale snapshot must be ignored")
	}
	s, _ := view.State()
	if s.CurrentQuestionIndex != 1 {
		t.Fatalf("expected index 1, got %d", s.CurrentQuestionIndex)
	}
}

func TestPlayerViewScoreAndWinner(t *testing.T) {
	view := app.NewPlayerView("b")
	if view.MyScore() != 0 || view.IsWinner() {
		t.Fatalf("empty view has no score")
	}
	s := domain.NewGameState()
	s.Status = domain.StatusFinished
	s.Players = map[string]domain.Player{"a": {Name: "A"}, "b": {Name: "B"}}
	s.Scores = map[string]int{"a": 500, "b": 500}
	view.Apply(s)
	if view.MyScore() != 500 {
		t.Fatalf("expected 500, got %d", view.MyScore())
	}
	if view.IsWinner() {
		t.Fatalf("tie goes to the lower player id")
	}
	s.Seq++
	s.Scores = map[string]int{"a": 500, "b": 750}
	view.Apply(s)
	if !view.IsWinner() {
		t.Fatalf("expected winner")
	}
}

func TestPlayerJoinsAndAnswers(t *testing.T) {
	ctx := context.Background()
	tg := newTestGameWithTick(t, nil, 50*time.Millisecond)
	if err := tg.game.SetQuestions(ctx, twoQuestions()); err != nil {
		t.Fatalf("set questions: %v", err)
	}

	ep, err := tg.network.Dial(hostCode)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	player := app.NewPlayer(ep, hostCode, "Alice", zerolog.Nop())
	if err := player.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	tg.waitFor(t, "player joined", func(s domain.GameState) bool { return s.Players[ep.ID()].Name == "Alice" })

	if err := tg.game.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitPlayer(t, player, func(s domain.GameState) bool { return s.Status == domain.StatusInProgress })

	if err := player.Answer("Paris"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := player.Answer("Rome"); !errors.Is(err, domain.ErrAnswerRejected) {
		t.Fatalf("expected ErrAnswerRejected, got %v", err)
	}
	s := tg.waitFor(t, "answer recorded", func(s domain.GameState) bool { return len(s.PlayerAnswers[0]) == 1 })
	if s.PlayerAnswers[0][ep.ID()].Option != "Paris" {
		t.Fatalf("unexpected answers %+v", s.PlayerAnswers[0])
	}

	if err := player.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := player.Answer("4"); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
}

func waitPlayer(t *testing.T, p *app.Player, pred func(domain.GameState) bool) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-p.Updates():
			if !ok {
				t.Fatalf("player updates closed")
			}
			if pred(s) {
				return
			}
		case <-timeout:
			t.Fatalf("player never saw expected state")
		}
	}
}

func TestPlayerNoticesHostLeaving(t *testing.T) {
	tg := newTestGame(t, nil)
	ep, err := tg.network.Dial(hostCode)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	player := app.NewPlayer(ep, hostCode, "Alice", zerolog.Nop())
	if err := player.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	tg.waitFor(t, "player joined", func(s domain.GameState) bool { return len(s.Players) == 1 })

	tg.game.Close()
	select {
	case <-player.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatalf("player did not notice the host leaving")
	}
	if player.View().Connected() {
		t.Fatalf("view must report disconnected")
	}
}
