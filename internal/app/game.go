package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livequiz/internal/domain"
	"livequiz/internal/metrics"
	"livequiz/internal/scoring"
	"livequiz/internal/transport"
)

// GameConfig holds the session tunables.
type GameConfig struct {
	// QuestionSeconds is both the countdown length in ticks and the scoring time limit.
	QuestionSeconds int
	// Tick is the countdown unit. Tests shrink it; production uses one second.
	Tick            time.Duration
	MaxPoints       int
	LeaderboardSize int
}

// DefaultGameConfig matches the classic 20 second, 1000 point format.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		QuestionSeconds: int(scoring.TimeLimit / time.Second),
		Tick:            time.Second,
		MaxPoints:       scoring.MaxPoints,
		LeaderboardSize: scoring.LeaderboardSize,
	}
}

func (c GameConfig) withDefaults() GameConfig {
	d := DefaultGameConfig()
	if c.QuestionSeconds <= 0 {
		c.QuestionSeconds = d.QuestionSeconds
	}
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	if c.MaxPoints <= 0 {
		c.MaxPoints = d.MaxPoints
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = d.LeaderboardSize
	}
	return c
}

func (c GameConfig) timeLimit() time.Duration {
	return time.Duration(c.QuestionSeconds) * time.Second
}

type inboundEvent struct {
	peerID string
	msg    domain.Message
}

type rosterEvent struct {
	roster []string
}

type commandEvent struct {
	name  string
	apply func() error
	reply chan error
}

// Game is the host-side session. Canonical state is owned by the goroutine running Run;
// transport callbacks, countdown ticks and host commands reach it as events and each one is
// processed to completion before the next.
type Game struct {
	session transport.Session
	content *QuestionService
	cfg     GameConfig
	now     func() time.Time
	log     zerolog.Logger
	metrics metrics.GameCollector

	events    chan any
	done      chan struct{}
	closeOnce sync.Once
	runOnce   sync.Once

	// loop-owned
	state     domain.GameState
	countdown *countdown
	gen       uint64
	loopCtx   context.Context

	mu          sync.Mutex
	latest      domain.GameState
	subscribers map[chan domain.GameState]struct{}
}

// NewGame wires a session to a fresh lobby. content may be nil when questions are only ever
// set directly.
func NewGame(session transport.Session, content *QuestionService, cfg GameConfig, log zerolog.Logger, collector metrics.GameCollector) *Game {
	return NewGameWithClock(session, content, cfg, log, collector, time.Now)
}

// NewGameWithClock allows deterministic question start times in tests.
func NewGameWithClock(session transport.Session, content *QuestionService, cfg GameConfig, log zerolog.Logger, collector metrics.GameCollector, now func() time.Time) *Game {
	state := domain.NewGameState()
	g := &Game{
		session:     session,
		content:     content,
		cfg:         cfg.withDefaults(),
		now:         now,
		log:         log.With().Str("component", "game").Str("code", session.ID()).Logger(),
		metrics:     collector,
		events:      make(chan any, 64),
		done:        make(chan struct{}),
		state:       state,
		latest:      state.Clone(),
		subscribers: make(map[chan domain.GameState]struct{}),
	}
	session.OnMessage(func(peerID string, msg domain.Message) {
		g.post(inboundEvent{peerID: peerID, msg: msg})
	})
	session.OnRosterChange(func(roster []string) {
		g.post(rosterEvent{roster: roster})
	})
	return g
}

// Run processes events until ctx is cancelled or Close is called. It tears down the
// countdown and the transport on the way out.
func (g *Game) Run(ctx context.Context) error {
	started := false
	g.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("game loop already running")
	}
	g.loopCtx = ctx
	g.log.Info().Msg("game session open")

	defer func() {
		g.countdown.stop()
		g.Close()
		g.log.Info().Msg("game session closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.done:
			return nil
		case ev := <-g.events:
			g.handle(ev)
		}
	}
}

// Close ends the session: the loop stops and every connection is closed.
func (g *Game) Close() error {
	var err error
	g.closeOnce.Do(func() {
		close(g.done)
		err = g.session.Close()
		g.mu.Lock()
		for ch := range g.subscribers {
			delete(g.subscribers, ch)
			close(ch)
		}
		g.mu.Unlock()
	})
	return err
}

// Done is closed once the session is torn down.
func (g *Game) Done() <-chan struct{} {
	return g.done
}

func (g *Game) post(ev any) {
	select {
	case g.events <- ev:
	case <-g.done:
	}
}

func (g *Game) postTick(ctx context.Context, ev tickEvent) bool {
	select {
	case g.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-g.done:
		return false
	}
}

func (g *Game) handle(ev any) {
	switch ev := ev.(type) {
	case inboundEvent:
		g.handleMessage(ev.peerID, ev.msg)
	case rosterEvent:
		g.handleRoster(ev.roster)
	case tickEvent:
		g.handleTick(ev)
	case commandEvent:
		err := ev.apply()
		if err != nil {
			g.log.Debug().Err(err).Str("command", ev.name).Msg("command rejected")
		}
		ev.reply <- err
	default:
		g.log.Error().Str("event", fmt.Sprintf("%T", ev)).Msg("unhandled event")
	}
}

func (g *Game) do(ctx context.Context, name string, apply func() error) error {
	reply := make(chan error, 1)
	select {
	case g.events <- commandEvent{name: name, apply: apply, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return domain.ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return domain.ErrSessionClosed
	}
}

// Start moves the lobby into the first question. It needs at least one question.
func (g *Game) Start(ctx context.Context) error {
	return g.do(ctx, "start", g.start)
}

// ShowLeaderboard settles the current question and shows standings.
func (g *Game) ShowLeaderboard(ctx context.Context) error {
	return g.do(ctx, "leaderboard", g.showLeaderboard)
}

// Next advances to the following question, or finishes after the last one.
func (g *Game) Next(ctx context.Context) error {
	return g.do(ctx, "next", g.next)
}

// Finish ends the game from the leaderboard of the last question.
func (g *Game) Finish(ctx context.Context) error {
	return g.do(ctx, "finish", g.finish)
}

// Reset returns the session to the lobby, keeping connected players and questions.
func (g *Game) Reset(ctx context.Context) error {
	return g.do(ctx, "reset", g.reset)
}

// SetQuestions replaces the question set. Only allowed in the lobby.
func (g *Game) SetQuestions(ctx context.Context, questions []domain.Question) error {
	cp := append([]domain.Question(nil), questions...)
	return g.do(ctx, "set_questions", func() error { return g.setQuestions(cp) })
}

// Generate asks the content service for a new question set and installs it. On failure the
// previous questions stay in place.
func (g *Game) Generate(ctx context.Context, req GenerateRequest) ([]domain.Question, error) {
	if g.content == nil {
		return nil, fmt.Errorf("%w: no content generator configured", domain.ErrGenerationFailed)
	}
	questions, err := g.content.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := g.SetQuestions(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Snapshot returns the most recently published state.
func (g *Game) Snapshot() domain.GameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.latest.Clone()
}

// Leaderboard ranks the latest snapshot.
func (g *Game) Leaderboard() []domain.LeaderboardEntry {
	s := g.Snapshot()
	return scoring.Leaderboard(s.Scores, s.Players, s.PreviousScores, g.cfg.LeaderboardSize)
}

// Subscribe returns a channel of published snapshots, starting with the current one.
// Slow readers only miss intermediate snapshots. The caller must invoke cancel.
func (g *Game) Subscribe() (<-chan domain.GameState, func()) {
	ch := make(chan domain.GameState, 8)

	g.mu.Lock()
	select {
	case <-g.done:
		g.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	g.subscribers[ch] = struct{}{}
	ch <- g.latest
	g.mu.Unlock()

	cancel := func() {
		g.mu.Lock()
		if _, ok := g.subscribers[ch]; ok {
			delete(g.subscribers, ch)
			close(ch)
		}
		g.mu.Unlock()
	}
	return ch, cancel
}

// publish pushes a fresh copy of the canonical state to every player and local subscriber.
func (g *Game) publish() {
	g.state.Seq++
	snapshot := g.state.Clone()

	g.session.Broadcast(domain.StateUpdate(snapshot))
	g.metrics.SnapshotBroadcast()

	g.mu.Lock()
	g.latest = snapshot
	for ch := range g.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
	g.mu.Unlock()
}

func (g *Game) handleMessage(peerID string, msg domain.Message) {
	g.metrics.MessageReceived(msg.Type)
	switch msg.Type {
	case domain.MessagePlayerJoin:
		g.handleJoin(peerID, msg.Join)
	case domain.MessagePlayerAnswer:
		g.handleAnswer(peerID, msg.Answer)
	case domain.MessageGameStateUpdate:
		g.metrics.MessageRejected("host_only")
		g.log.Warn().Str("peer", peerID).Msg("player sent a state update, dropping")
	default:
		g.metrics.MessageRejected("unknown_type")
		g.log.Warn().Str("peer", peerID).Str("type", string(msg.Type)).Msg("unknown message type, dropping")
	}
}

func (g *Game) handleJoin(peerID string, p *domain.JoinPayload) {
	if p == nil {
		g.metrics.MessageRejected("missing_payload")
		return
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		g.metrics.MessageRejected("empty_name")
		g.log.Warn().Str("peer", peerID).Msg("join without a name, dropping")
		return
	}
	g.state.Players[peerID] = domain.Player{Name: name}
	g.state.Scores[peerID] = 0
	g.metrics.PlayersConnected(len(g.state.Players))
	g.log.Info().Str("peer", peerID).Str("name", name).Str("status", string(g.state.Status)).Msg("player joined")
	g.publish()
}

// handleAnswer records the answer whatever the phase; settlement's time window is the only gate.
func (g *Game) handleAnswer(peerID string, p *domain.AnswerPayload) {
	if p == nil {
		g.metrics.MessageRejected("missing_payload")
		return
	}
	if g.state.Status != domain.StatusInProgress || p.QuestionIndex != g.state.CurrentQuestionIndex {
		g.log.Debug().Str("peer", peerID).Int("question", p.QuestionIndex).Str("status", string(g.state.Status)).Msg("answer outside the active question")
	}
	answers, ok := g.state.PlayerAnswers[p.QuestionIndex]
	if !ok {
		answers = make(map[string]domain.Answer)
		g.state.PlayerAnswers[p.QuestionIndex] = answers
	}
	answers[peerID] = domain.Answer{Option: p.Option, SubmittedAt: p.SubmittedAt}
	g.publish()
}

func (g *Game) handleRoster(roster []string) {
	live := make(map[string]struct{}, len(roster))
	for _, id := range roster {
		live[id] = struct{}{}
	}
	var gone []string
	for id := range g.state.Players {
		if _, ok := live[id]; !ok {
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return
	}
	sort.Strings(gone)
	for _, id := range gone {
		delete(g.state.Players, id)
	}
	g.metrics.PlayersConnected(len(g.state.Players))
	g.log.Info().Strs("peers", gone).Msg("players disconnected")
	g.publish()
}

func (g *Game) handleTick(ev tickEvent) {
	if g.countdown == nil || ev.gen != g.countdown.gen {
		return
	}
	g.state.Remaining = ev.remaining
	if ev.remaining > 0 {
		return
	}
	g.stopCountdown()
	if g.state.Status != domain.StatusInProgress {
		return
	}
	g.state.Status = domain.StatusQuestionResults
	g.log.Info().Int("question", g.state.CurrentQuestionIndex).Msg("time is up")
	g.publish()
}

func (g *Game) startCountdown() {
	g.stopCountdown()
	g.gen++
	g.state.Remaining = g.cfg.QuestionSeconds
	ctx := g.loopCtx
	if ctx == nil {
		ctx = context.Background()
	}
	g.countdown = startCountdown(ctx, g.gen, g.cfg.QuestionSeconds, g.cfg.Tick, g.postTick)
}

func (g *Game) stopCountdown() {
	g.countdown.stop()
	g.countdown = nil
}

func invalidTransition(from, to domain.Status) error {
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
}

func (g *Game) start() error {
	if g.state.Status != domain.StatusLobby {
		return invalidTransition(g.state.Status, domain.StatusInProgress)
	}
	if len(g.state.Questions) == 0 {
		return domain.ErrNoQuestions
	}
	scores := make(map[string]int, len(g.state.Players))
	for id := range g.state.Players {
		scores[id] = 0
	}
	g.state.Scores = scores
	g.state.PreviousScores = nil
	g.state.PlayerAnswers = make(map[int]map[string]domain.Answer)
	g.state.CurrentQuestionIndex = 0
	g.state.ShowResults = false
	g.beginQuestion()
	g.log.Info().Int("questions", len(g.state.Questions)).Int("players", len(g.state.Players)).Msg("game started")
	g.publish()
	return nil
}

func (g *Game) beginQuestion() {
	startedAt := g.now().UnixMilli()
	g.state.QuestionStartTime = &startedAt
	g.state.Status = domain.StatusInProgress
	g.startCountdown()
}

func (g *Game) showLeaderboard() error {
	if g.state.Status != domain.StatusQuestionResults {
		return invalidTransition(g.state.Status, domain.StatusLeaderboard)
	}
	question, ok := g.state.CurrentQuestion()
	if !ok {
		return fmt.Errorf("no question at index %d", g.state.CurrentQuestionIndex)
	}
	var start int64
	if g.state.QuestionStartTime != nil {
		start = *g.state.QuestionStartTime
	}
	res := scoring.Settle(scoring.Input{
		CorrectAnswer: question.CorrectAnswer,
		Answers:       g.state.AnswersFor(g.state.CurrentQuestionIndex),
		StartTime:     start,
		TimeLimit:     g.cfg.timeLimit(),
		MaxPoints:     g.cfg.MaxPoints,
		Scores:        g.state.Scores,
	})
	for _, points := range res.Awards {
		g.metrics.AnswerAwarded(points)
	}
	g.state.PreviousScores = res.Previous
	g.state.Scores = res.Scores
	g.state.ShowResults = true
	g.state.Status = domain.StatusLeaderboard
	g.log.Info().Int("question", g.state.CurrentQuestionIndex).Int("answers", len(res.Awards)).Msg("question settled")
	g.publish()
	return nil
}

func (g *Game) next() error {
	if g.state.Status != domain.StatusLeaderboard {
		return invalidTransition(g.state.Status, domain.StatusInProgress)
	}
	if g.state.IsLastQuestion() {
		g.state.Status = domain.StatusFinished
		g.log.Info().Msg("game finished")
		g.publish()
		return nil
	}
	g.state.CurrentQuestionIndex++
	g.state.ShowResults = false
	g.beginQuestion()
	g.publish()
	return nil
}

func (g *Game) finish() error {
	if g.state.Status != domain.StatusLeaderboard || !g.state.IsLastQuestion() {
		return invalidTransition(g.state.Status, domain.StatusFinished)
	}
	g.state.Status = domain.StatusFinished
	g.log.Info().Msg("game finished")
	g.publish()
	return nil
}

func (g *Game) reset() error {
	g.stopCountdown()
	next := domain.NewGameState()
	next.Questions = g.state.Questions
	next.Seq = g.state.Seq
	for id, p := range g.state.Players {
		next.Players[id] = p
		next.Scores[id] = 0
	}
	g.state = next
	g.log.Info().Msg("session reset to lobby")
	g.publish()
	return nil
}

func (g *Game) setQuestions(questions []domain.Question) error {
	if g.state.Status != domain.StatusLobby {
		return invalidTransition(g.state.Status, domain.StatusLobby)
	}
	if err := validateQuestions(questions); err != nil {
		return err
	}
	g.state.Questions = questions
	g.publish()
	return nil
}
