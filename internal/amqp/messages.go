package amqp

import (
	"encoding/json"
	"time"

	"budgetflow/internal/events"
)

// LedgerEventMessage is the wire form of a ledger mutation. It carries only
// the event metadata; consumers reload the ledger themselves.
type LedgerEventMessage struct {
	UserID    string       `json:"user_id"`
	Event     events.Event `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewLedgerEventMessage wraps an event for publishing
func NewLedgerEventMessage(userID string, e events.Event) *LedgerEventMessage {
	return &LedgerEventMessage{
		UserID:    userID,
		Event:     e,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
