package domain

// MessageType tags the three wire messages exchanged between host and players.
type MessageType string

const (
	// Host -> players
	MessageGameStateUpdate MessageType = "GAME_STATE_UPDATE"

	// Player -> host
	MessagePlayerJoin   MessageType = "PLAYER_JOIN"
	MessagePlayerAnswer MessageType = "PLAYER_ANSWER"
)

// JoinPayload announces a player's display name.
type JoinPayload struct {
	Name string `json:"name"`
}

// AnswerPayload carries one answer submission.
type AnswerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Option        string `json:"option"`
	SubmittedAt   int64  `json:"submittedAt"`
}

// Message is the closed union of wire messages. Exactly one payload field matches Type.
type Message struct {
	Type   MessageType
	State  *GameState
	Join   *JoinPayload
	Answer *AnswerPayload
}

// StateUpdate wraps a snapshot for broadcast.
func StateUpdate(state GameState) Message {
	return Message{Type: MessageGameStateUpdate, State: &state}
}

// JoinMessage builds a PLAYER_JOIN message.
func JoinMessage(name string) Message {
	return Message{Type: MessagePlayerJoin, Join: &JoinPayload{Name: name}}
}

// AnswerMessage builds a PLAYER_ANSWER message.
func AnswerMessage(p AnswerPayload) Message {
	return Message{Type: MessagePlayerAnswer, Answer: &p}
}
