package bus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is the envelope exchanged between execution contexts.
//
// Action selects the handler behavior on the receiving side; RequestID
// correlates a request with its eventual response and must stay unique
// among the sender's in-flight requests.
type Message struct {
	Action    string          `json:"action"`
	RequestID string          `json:"requestId"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response carries a handler's reply back to the original sender.
type Response struct {
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is the structured reply synthesized when a handler fails.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage builds a request envelope with a fresh correlation id.
func NewMessage(action string, payload json.RawMessage) Message {
	return Message{
		Action:    action,
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}
