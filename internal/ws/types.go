package ws

import (
	"time"

	"anomidate/internal/models"
)

// Operation codes for WebSocket messages
type OpCode int

// ProtocolVersion is the exact server/client WS protocol version.
// Bump this only for breaking wire-contract changes.
const ProtocolVersion = 1

const (
	// DISPATCH - Events with type field
	OpDispatch OpCode = 0

	// Lifecycle ops (Server -> Client)
	OpHello          OpCode = 1 // Sent on connection
	OpInvalidSession OpCode = 3 // Session ended, client must not reconnect with it
)

// Event types (Server -> Client via DISPATCH)
const (
	EventMessageCreate = "MESSAGE_CREATE"
	EventMatchCreate   = "MATCH_CREATE"
)

type WSMessage struct {
	Op   OpCode `json:"op"`
	Type string `json:"t,omitempty"`
	Data any    `json:"d,omitempty"`
	Seq  *int64 `json:"s,omitempty"`
}

type HelloPayload struct {
	ProtocolVersion   int   `json:"protocolVersion"`
	HeartbeatInterval int64 `json:"heartbeatInterval"`
	UserID            int64 `json:"userId"`
}

type MessageCreatePayload struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sentAt"`
}

type MatchCreatePayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

func newMessageCreatePayload(m *models.Message) MessageCreatePayload {
	return MessageCreatePayload{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		SentAt:     m.SentAt,
	}
}
