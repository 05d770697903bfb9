package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"livequiz/internal/domain"
	"livequiz/internal/transport"
)

const inboxSize = 256

// Network is an in-process peer network. Every message still goes through the wire codec so
// endpoints behave like a real connection: delivery is asynchronous and at most once.
type Network struct {
	log zerolog.Logger

	mu        sync.Mutex
	endpoints map[string]*Endpoint
}

// NewNetwork returns an empty network.
func NewNetwork(log zerolog.Logger) *Network {
	return &Network{
		log:       log.With().Str("component", "memory-network").Logger(),
		endpoints: make(map[string]*Endpoint),
	}
}

// Listen opens an endpoint under a fixed id, typically a host session code.
func (n *Network) Listen(id string) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.endpoints[id]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCodeTaken, id)
	}
	ep := newEndpoint(n, id)
	n.endpoints[id] = ep
	return ep, nil
}

// Dial opens an endpoint with a fresh id and connects it to hostID.
func (n *Network) Dial(hostID string) (*Endpoint, error) {
	n.mu.Lock()
	host, ok := n.endpoints[hostID]
	if !ok {
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrCodeNotFound, hostID)
	}
	ep := newEndpoint(n, transport.NewPeerID())
	n.endpoints[ep.id] = ep
	n.mu.Unlock()

	if !host.attach(ep) {
		ep.Close()
		return nil, fmt.Errorf("%w: %s", domain.ErrCodeNotFound, hostID)
	}
	ep.attach(host)
	return ep, nil
}

func (n *Network) remove(id string) {
	n.mu.Lock()
	delete(n.endpoints, id)
	n.mu.Unlock()
}

// Endpoint is one participant on a Network. It implements transport.Session.
type Endpoint struct {
	id  string
	net *Network
	log zerolog.Logger

	inbox chan func()
	// roster is a one-slot signal. Roster changes coalesce and are never dropped; the
	// dispatcher reads the live roster when it handles the signal.
	roster chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	peers     map[string]*Endpoint
	onMessage transport.MessageHandler
	onRoster  transport.RosterHandler
	closed    bool
}

var _ transport.Session = (*Endpoint)(nil)

func newEndpoint(n *Network, id string) *Endpoint {
	ep := &Endpoint{
		id:    id,
		net:   n,
		log:   n.log.With().Str("peer", id).Logger(),
		inbox:  make(chan func(), inboxSize),
		roster: make(chan struct{}, 1),
		done:   make(chan struct{}),
		peers:  make(map[string]*Endpoint),
	}
	go ep.dispatch()
	return ep
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) OnMessage(fn transport.MessageHandler) {
	e.mu.Lock()
	e.onMessage = fn
	e.mu.Unlock()
}

func (e *Endpoint) OnRosterChange(fn transport.RosterHandler) {
	e.mu.Lock()
	e.onRoster = fn
	e.mu.Unlock()
}

func (e *Endpoint) Connections() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rosterLocked()
}

func (e *Endpoint) Send(peerID string, msg domain.Message) error {
	data, err := transport.Encode(msg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	peer, ok := e.peers[peerID]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	peer.receive(e.id, data)
	return nil
}

func (e *Endpoint) Broadcast(msg domain.Message) {
	data, err := transport.Encode(msg)
	if err != nil {
		e.log.Error().Err(err).Msg("encode broadcast")
		return
	}
	e.mu.Lock()
	peers := make([]*Endpoint, 0, len(e.peers))
	for _, p := range e.peers {
		peers = append(peers, p)
	}
	e.mu.Unlock()
	for _, p := range peers {
		p.receive(e.id, data)
	}
}

// Close disconnects every peer. Peers observe a roster change.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	peers := e.peers
	e.peers = make(map[string]*Endpoint)
	e.mu.Unlock()

	for _, p := range peers {
		p.detach(e.id)
	}
	e.net.remove(e.id)
	close(e.done)
	return nil
}

func (e *Endpoint) attach(peer *Endpoint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.peers[peer.id] = peer
	e.enqueueRosterLocked()
	return true
}

func (e *Endpoint) detach(peerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.peers[peerID]; !ok || e.closed {
		return
	}
	delete(e.peers, peerID)
	e.enqueueRosterLocked()
}

func (e *Endpoint) receive(from string, data []byte) {
	e.enqueue(func() {
		msg, err := transport.Decode(data)
		if err != nil {
			e.log.Warn().Err(err).Str("from", from).Msg("dropping undecodable message")
			return
		}
		e.mu.Lock()
		fn := e.onMessage
		_, connected := e.peers[from]
		e.mu.Unlock()
		if fn != nil && connected {
			fn(from, msg)
		}
	})
}

func (e *Endpoint) enqueueRosterLocked() {
	select {
	case e.roster <- struct{}{}:
	default:
	}
}

func (e *Endpoint) notifyRoster() {
	e.mu.Lock()
	fn := e.onRoster
	roster := e.rosterLocked()
	e.mu.Unlock()
	if fn != nil {
		fn(roster)
	}
}

func (e *Endpoint) enqueue(fn func()) {
	select {
	case <-e.done:
	case e.inbox <- fn:
	default:
		e.log.Warn().Msg("inbox full, dropping delivery")
	}
}

func (e *Endpoint) dispatch() {
	for {
		select {
		case <-e.done:
			return
		case <-e.roster:
			e.notifyRoster()
		case fn := <-e.inbox:
			fn()
		}
	}
}

func (e *Endpoint) rosterLocked() []string {
	out := make([]string, 0, len(e.peers))
	for id := range e.peers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
