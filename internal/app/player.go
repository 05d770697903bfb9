package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livequiz/internal/domain"
	"livequiz/internal/scoring"
	"livequiz/internal/transport"
)

// PlayerView is the player's read-only replica of the host state plus its own pending answer.
type PlayerView struct {
	id        string
	state     *domain.GameState
	pending   string
	connected bool
}

// NewPlayerView returns an empty view for the player with the given peer id.
func NewPlayerView(id string) *PlayerView {
	return &PlayerView{id: id}
}

// Apply installs a snapshot from the host. Stale snapshots are ignored; moving to another
// question clears the pending answer. It reports whether the snapshot was installed.
func (v *PlayerView) Apply(s domain.GameState) bool {
	if v.state != nil {
		if s.Seq != 0 && s.Seq < v.state.Seq {
			return false
		}
		if s.CurrentQuestionIndex != v.state.CurrentQuestionIndex {
			v.pending = ""
		}
	}
	v.state = &s
	return true
}

// Select records a pending answer and returns the payload to send to the host.
func (v *PlayerView) Select(option string, now time.Time) (domain.AnswerPayload, bool) {
	if v.state == nil || v.pending != "" {
		return domain.AnswerPayload{}, false
	}
	if v.state.Status != domain.StatusInProgress || v.state.ShowResults {
		return domain.AnswerPayload{}, false
	}
	q, ok := v.state.CurrentQuestion()
	if !ok || !q.HasOption(option) {
		return domain.AnswerPayload{}, false
	}
	v.pending = option
	return domain.AnswerPayload{
		QuestionIndex: v.state.CurrentQuestionIndex,
		Option:        option,
		SubmittedAt:   now.UnixMilli(),
	}, true
}

// Pending is the option chosen for the current question, or "".
func (v PlayerView) Pending() string {
	return v.pending
}

// State returns the last applied snapshot.
func (v PlayerView) State() (domain.GameState, bool) {
	if v.state == nil {
		return domain.GameState{}, false
	}
	return *v.state, true
}

// MyScore is this player's score in the last applied snapshot.
func (v PlayerView) MyScore() int {
	if v.state == nil {
		return 0
	}
	return v.state.Scores[v.id]
}

// IsWinner reports whether this player tops the leaderboard.
func (v PlayerView) IsWinner() bool {
	if v.state == nil {
		return false
	}
	top := scoring.Leaderboard(v.state.Scores, v.state.Players, nil, 1)
	return len(top) == 1 && top[0].PlayerID == v.id
}

// SetConnected records whether the connection to the host is open.
func (v *PlayerView) SetConnected(connected bool) {
	v.connected = connected
}

// Connected reports whether answers can currently reach the host.
func (v PlayerView) Connected() bool {
	return v.connected
}

// Player drives one player's connection to a host: it announces itself once the connection
// opens, keeps a PlayerView current and sends answers.
type Player struct {
	session transport.Session
	hostID  string
	name    string
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	view    *PlayerView
	joined  bool
	updates chan domain.GameState
	closed  bool
	lost    chan struct{}
	lostSet bool
}

// NewPlayer wraps a session dialed to hostID. Nothing is sent until Join.
func NewPlayer(session transport.Session, hostID, name string, log zerolog.Logger) *Player {
	return &Player{
		session: session,
		hostID:  hostID,
		name:    name,
		now:     time.Now,
		log:     log.With().Str("component", "player").Str("peer", session.ID()).Logger(),
		view:    NewPlayerView(session.ID()),
		updates: make(chan domain.GameState, 8),
		lost:    make(chan struct{}),
	}
}

// Join registers the transport callbacks and sends PLAYER_JOIN as soon as the host is
// reachable. It fails when the connection is not open yet.
func (p *Player) Join() error {
	p.session.OnMessage(p.handleMessage)
	p.session.OnRosterChange(p.handleRoster)
	p.handleRoster(p.session.Connections())

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.view.Connected() {
		return domain.ErrNotConnected
	}
	return nil
}

// Answer selects an option for the current question and sends it to the host.
func (p *Player) Answer(option string) error {
	p.mu.Lock()
	if !p.view.Connected() {
		p.mu.Unlock()
		return domain.ErrNotConnected
	}
	payload, ok := p.view.Select(option, p.now())
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrAnswerRejected, option)
	}
	return p.session.Send(p.hostID, domain.AnswerMessage(payload))
}

// View returns a copy of the current replica.
func (p *Player) View() PlayerView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.view
}

// Updates delivers every applied snapshot. Slow readers only miss intermediate ones.
func (p *Player) Updates() <-chan domain.GameState {
	return p.updates
}

// Disconnected is closed once the connection to the host is gone, either side having closed it.
func (p *Player) Disconnected() <-chan struct{} {
	return p.lost
}

// Close leaves the game.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.view.SetConnected(false)
	close(p.updates)
	p.markLostLocked()
	p.mu.Unlock()
	return p.session.Close()
}

func (p *Player) markLostLocked() {
	if !p.lostSet {
		p.lostSet = true
		close(p.lost)
	}
}

func (p *Player) handleRoster(roster []string) {
	connected := false
	for _, id := range roster {
		if id == p.hostID {
			connected = true
			break
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.view.SetConnected(connected)
	sendJoin := connected && !p.joined
	if sendJoin {
		p.joined = true
	}
	if !connected && p.joined {
		p.joined = false
		p.markLostLocked()
	}
	p.mu.Unlock()

	if !connected {
		p.log.Warn().Msg("disconnected from host")
		return
	}
	if sendJoin {
		if err := p.session.Send(p.hostID, domain.JoinMessage(p.name)); err != nil {
			p.log.Error().Err(err).Msg("send join")
		}
	}
}

func (p *Player) handleMessage(peerID string, msg domain.Message) {
	if peerID != p.hostID || msg.Type != domain.MessageGameStateUpdate || msg.State == nil {
		p.log.Warn().Str("from", peerID).Str("type", string(msg.Type)).Msg("unexpected message, dropping")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.view.Apply(*msg.State) {
		return
	}
	state := *msg.State
	select {
	case p.updates <- state:
	default:
		select {
		case <-p.updates:
		default:
		}
		p.updates <- state
	}
}
