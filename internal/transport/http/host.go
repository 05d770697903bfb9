package http

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"livequiz/internal/domain"
	"livequiz/internal/transport"
)

const (
	sendQueueSize = 16
	inboxSize     = 256
	writeWait     = time.Second
)

// Host is the host side of the peer network: players connect to it over websockets at
// /peer/:code. It implements transport.Session.
type Host struct {
	code     string
	log      zerolog.Logger
	upgrader websocket.Upgrader

	inbox chan func()
	done  chan struct{}

	mu        sync.Mutex
	conns     map[string]*peerConn
	onMessage transport.MessageHandler
	onRoster  transport.RosterHandler
	closed    bool
}

type peerConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

var _ transport.Session = (*Host)(nil)

func NewHost(code string, log zerolog.Logger) *Host {
	h := &Host{
		code: code,
		log:  log.With().Str("component", "ws-host").Str("code", code).Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		inbox: make(chan func(), inboxSize),
		done:  make(chan struct{}),
		conns: make(map[string]*peerConn),
	}
	go h.dispatch()
	return h
}

func (h *Host) ID() string { return h.code }

func (h *Host) OnMessage(fn transport.MessageHandler) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

func (h *Host) OnRosterChange(fn transport.RosterHandler) {
	h.mu.Lock()
	h.onRoster = fn
	h.mu.Unlock()
}

func (h *Host) Connections() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rosterLocked()
}

func (h *Host) Send(peerID string, msg domain.Message) error {
	data, err := transport.Encode(msg)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[peerID]; ok {
		h.queueLocked(c, data)
	}
	return nil
}

func (h *Host) Broadcast(msg domain.Message) {
	data, err := transport.Encode(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("encode broadcast")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.conns {
		h.queueLocked(c, data)
	}
}

// Close disconnects every player and rejects new connections.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*peerConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(writeWait))
		_ = c.ws.Close()
	}
	close(h.done)
	return nil
}

// ServePeer upgrades a player connection. The peer query parameter lets a player choose its id;
// otherwise one is assigned.
func (h *Host) ServePeer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if transport.NormalizeCode(ps.ByName("code")) != h.code {
		http.Error(w, "unknown session code", http.StatusNotFound)
		return
	}
	peerID := r.URL.Query().Get("peer")
	if peerID == "" {
		peerID = transport.NewPeerID()
	}

	h.mu.Lock()
	closed := h.closed
	_, taken := h.conns[peerID]
	h.mu.Unlock()
	if closed {
		http.Error(w, "session closed", http.StatusServiceUnavailable)
		return
	}
	if taken {
		http.Error(w, "peer id already connected", http.StatusConflict)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	c := &peerConn{id: peerID, ws: ws, send: make(chan []byte, sendQueueSize)}
	if !h.register(c) {
		_ = ws.Close()
		return
	}
	h.log.Info().Str("peer", peerID).Str("remote", r.RemoteAddr).Msg("peer connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Host) register(c *peerConn) bool {
	h.mu.Lock()
	if _, taken := h.conns[c.id]; h.closed || taken {
		h.mu.Unlock()
		return false
	}
	h.conns[c.id] = c
	h.mu.Unlock()

	h.enqueueRoster()
	return true
}

func (h *Host) unregister(c *peerConn) {
	h.mu.Lock()
	if cur, ok := h.conns[c.id]; !ok || cur != c {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	close(c.send)
	h.mu.Unlock()

	h.enqueueRoster()
}

func (h *Host) readPump(c *peerConn) {
	defer func() {
		h.unregister(c)
		_ = c.ws.Close()
		h.log.Info().Str("peer", c.id).Msg("peer disconnected")
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := transport.Decode(data)
		if err != nil {
			h.log.Warn().Err(err).Str("peer", c.id).Msg("dropping undecodable message")
			continue
		}
		h.enqueue(func() {
			h.mu.Lock()
			fn := h.onMessage
			h.mu.Unlock()
			if fn != nil {
				fn(c.id, msg)
			}
		})
	}
}

func (h *Host) writePump(c *peerConn) {
	defer c.ws.Close()

	for data := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug().Err(err).Str("peer", c.id).Msg("ws write failed")
			return
		}
	}
}

func (h *Host) queueLocked(c *peerConn, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("peer", c.id).Msg("send queue full, dropping message")
	}
}

// enqueueRoster schedules a roster notification. The roster is read when the notification runs
// so callbacks never observe an older roster after a newer one.
func (h *Host) enqueueRoster() {
	h.enqueue(func() {
		h.mu.Lock()
		fn := h.onRoster
		roster := h.rosterLocked()
		h.mu.Unlock()
		if fn != nil {
			fn(roster)
		}
	})
}

func (h *Host) enqueue(fn func()) {
	select {
	case h.inbox <- fn:
	case <-h.done:
	}
}

func (h *Host) dispatch() {
	for {
		select {
		case <-h.done:
			return
		case fn := <-h.inbox:
			fn()
		}
	}
}

func (h *Host) rosterLocked() []string {
	out := make([]string, 0, len(h.conns))
	for id := range h.conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
