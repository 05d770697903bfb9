package transport

import (
	"encoding/json"
	"fmt"

	"livequiz/internal/domain"
)

type envelope struct {
	Type    domain.MessageType `json:"type"`
	Payload json.RawMessage    `json:"payload"`
}

// Encode serializes msg as a {"type", "payload"} envelope.
func Encode(msg domain.Message) ([]byte, error) {
	var payload any
	switch msg.Type {
	case domain.MessageGameStateUpdate:
		if msg.State == nil {
			return nil, fmt.Errorf("encode %s: missing state", msg.Type)
		}
		payload = msg.State
	case domain.MessagePlayerJoin:
		if msg.Join == nil {
			return nil, fmt.Errorf("encode %s: missing payload", msg.Type)
		}
		payload = msg.Join
	case domain.MessagePlayerAnswer:
		if msg.Answer == nil {
			return nil, fmt.Errorf("encode %s: missing payload", msg.Type)
		}
		payload = msg.Answer
	default:
		return nil, fmt.Errorf("encode: %w: %q", domain.ErrUnknownMessage, msg.Type)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return json.Marshal(envelope{Type: msg.Type, Payload: raw})
}

// Decode parses an envelope into the closed message union. Unknown tags fail with
// domain.ErrUnknownMessage.
func Decode(data []byte) (domain.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	msg := domain.Message{Type: env.Type}
	var target any
	switch env.Type {
	case domain.MessageGameStateUpdate:
		msg.State = &domain.GameState{}
		target = msg.State
	case domain.MessagePlayerJoin:
		msg.Join = &domain.JoinPayload{}
		target = msg.Join
	case domain.MessagePlayerAnswer:
		msg.Answer = &domain.AnswerPayload{}
		target = msg.Answer
	default:
		return domain.Message{}, fmt.Errorf("decode: %w: %q", domain.ErrUnknownMessage, env.Type)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return domain.Message{}, fmt.Errorf("decode %s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return domain.Message{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return msg, nil
}
