// Package transport defines the peer session the game runs over. Implementations deliver
// messages at most once: sends to closed or unknown connections are dropped silently.
package transport

import "livequiz/internal/domain"

// MessageHandler receives every decoded inbound message with the sender's peer id.
type MessageHandler func(peerID string, msg domain.Message)

// RosterHandler receives the full set of open connections after each open or close.
type RosterHandler func(roster []string)

// Session is one participant's view of the peer network.
type Session interface {
	// ID is this participant's identifier. Hosts use a fixed session code.
	ID() string
	// Send delivers msg to one connection. Unknown or closed connections are not an error.
	Send(peerID string, msg domain.Message) error
	// Broadcast delivers msg to every open connection.
	Broadcast(msg domain.Message)
	// Connections lists the peer ids of currently open connections, sorted.
	Connections() []string
	// OnMessage registers the single inbound callback, replacing any earlier one.
	OnMessage(fn MessageHandler)
	// OnRosterChange registers the single roster callback, replacing any earlier one.
	OnRosterChange(fn RosterHandler)
	// Close tears down every connection. It is safe to call more than once.
	Close() error
}
