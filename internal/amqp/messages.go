package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"bilans/internal/core"
)

// RecordAppendedMessage announces a record written to the primary store.
// It carries only the ID; the worker loads the full record from SQLite.
type RecordAppendedMessage struct {
	ID        string    `json:"id"`
	Kind      core.Kind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordAppendedMessage(id string, kind core.Kind) *RecordAppendedMessage {
	return &RecordAppendedMessage{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordAppendedMessageFromJSON decodes a message and rejects one without an ID.
func RecordAppendedMessageFromJSON(data []byte) (*RecordAppendedMessage, error) {
	var msg RecordAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, errors.New("record appended message without id")
	}
	return &msg, nil
}
