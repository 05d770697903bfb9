package domain

import "errors"

var (
	// ErrNoQuestions is returned when the host starts a game before any questions exist.
	ErrNoQuestions = errors.New("no questions to play")
	// ErrInvalidTransition is returned when a host command is not allowed in the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSessionClosed is returned for commands issued after the session was torn down.
	ErrSessionClosed = errors.New("game session closed")
	// ErrUnknownMessage indicates an inbound message with an unrecognized type tag.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrInvalidQuestion indicates a generated question violates the question shape.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrGenerationFailed wraps any failure of a content generator.
	ErrGenerationFailed = errors.New("could not generate quiz questions")
	// ErrQuestionsNotFound indicates a question bank has nothing for the requested topic.
	ErrQuestionsNotFound = errors.New("no questions found for topic")
	// ErrCodeTaken is returned when a session code is already claimed by another host.
	ErrCodeTaken = errors.New("session code already in use")
	// ErrCodeNotFound is returned when a session code does not resolve to a host.
	ErrCodeNotFound = errors.New("session code not found")
	// ErrAnswerRejected is returned by the player side when an answer is not allowed right now.
	ErrAnswerRejected = errors.New("answer not allowed")
	// ErrNotConnected is returned when a player acts before its connection to the host is open.
	ErrNotConnected = errors.New("not connected to host")
	// ErrMissingAPIKey is returned at startup when the generator needs credentials that are absent.
	ErrMissingAPIKey = errors.New("generator api key not configured")
)
