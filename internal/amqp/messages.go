package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ChangeKind says what happened to the records.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeImported ChangeKind = "imported"
)

var ErrUnknownChange = errors.New("unknown change kind")

// ChangeMessage announces that the record set changed. It carries no record
// data; consumers re-read the records service.
type ChangeMessage struct {
	Kind      ChangeKind `json:"kind"`
	ExpenseID string     `json:"expense_id,omitempty"`
	Count     int        `json:"count,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewChangeMessage creates a change message stamped with the current time
func NewChangeMessage(kind ChangeKind, expenseID string, count int) *ChangeMessage {
	return &ChangeMessage{
		Kind:      kind,
		ExpenseID: expenseID,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes and validates a message
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case ChangeCreated, ChangeDeleted, ChangeImported:
	default:
		return nil, ErrUnknownChange
	}
	return &msg, nil
}
