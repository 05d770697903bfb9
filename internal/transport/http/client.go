package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"livequiz/internal/domain"
	"livequiz/internal/transport"
)

// Client is a player's single connection to a host. Its roster holds the host code while the
// connection is open and is empty afterwards. There is no reconnect.
type Client struct {
	id   string
	code string
	ws   *websocket.Conn
	log  zerolog.Logger
	send chan []byte

	mu        sync.Mutex
	open      bool
	onMessage transport.MessageHandler
	onRoster  transport.RosterHandler
	closeOnce sync.Once
}

var _ transport.Session = (*Client)(nil)

// PeerURL returns the websocket URL players dial for a session served at baseURL.
func PeerURL(baseURL, code string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/peer/" + url.PathEscape(transport.NormalizeCode(code))
	return u.String(), nil
}

// Dial connects to the host serving code at baseURL.
func Dial(ctx context.Context, baseURL, code string, log zerolog.Logger) (*Client, error) {
	code = transport.NormalizeCode(code)
	target, err := PeerURL(baseURL, code)
	if err != nil {
		return nil, err
	}
	id := transport.NewPeerID()
	target += "?peer=" + url.QueryEscape(id)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrCodeNotFound, code)
		}
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("dial host: %s", resp.Status)
		}
		return nil, fmt.Errorf("dial host: %w", err)
	}

	c := &Client{
		id:   id,
		code: code,
		ws:   ws,
		log:  log.With().Str("component", "ws-client").Str("peer", id).Logger(),
		send: make(chan []byte, sendQueueSize),
		open: true,
	}
	go c.writePump()
	go c.readPump()
	return c, nil
}

func (c *Client) ID() string { return c.id }

func (c *Client) OnMessage(fn transport.MessageHandler) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *Client) OnRosterChange(fn transport.RosterHandler) {
	c.mu.Lock()
	c.onRoster = fn
	c.mu.Unlock()
}

func (c *Client) Connections() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return []string{}
	}
	return []string{c.code}
}

func (c *Client) Send(peerID string, msg domain.Message) error {
	if peerID != c.code {
		return nil
	}
	data, err := transport.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	select {
	case c.send <- data:
	default:
		c.log.Warn().Msg("send queue full, dropping message")
	}
	return nil
}

// Broadcast sends to the host, the only connection a player has.
func (c *Client) Broadcast(msg domain.Message) {
	_ = c.Send(c.code, msg)
}

func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.open = false
		close(c.send)
		fn := c.onRoster
		c.mu.Unlock()

		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leaving"), time.Now().Add(writeWait))
		_ = c.ws.Close()
		if fn != nil {
			fn([]string{})
		}
	})
}

func (c *Client) readPump() {
	defer c.shutdown()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.log.Debug().Err(err).Msg("connection to host closed")
			return
		}
		msg, err := transport.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable message")
			continue
		}
		c.mu.Lock()
		fn := c.onMessage
		c.mu.Unlock()
		if fn != nil {
			fn(c.code, msg)
		}
	}
}

func (c *Client) writePump() {
	for data := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.log.Debug().Err(err).Msg("ws write failed")
			return
		}
	}
}
