package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Collections a change message can refer to.
const (
	CollectionAccounts      = "accounts"
	CollectionCredit        = "credit"
	CollectionPeriods       = "periods"
	CollectionBloodPressure = "blood_pressure"
)

type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

var ErrInvalidMessage = errors.New("invalid change message")

// RecordChangeMessage tells the worker that a record was written or removed.
// It carries only the key; the worker reads the current row itself. Year is
// the calendar year whose summary the change affects, zero when none.
type RecordChangeMessage struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Operation  Operation `json:"operation"`
	Version    int64     `json:"version"`
	Year       int       `json:"year,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewRecordChangeMessage(collection, id string, op Operation, version int64, year int) *RecordChangeMessage {
	return &RecordChangeMessage{
		Collection: collection,
		ID:         id,
		Operation:  op,
		Version:    version,
		Year:       year,
		Timestamp:  time.Now(),
	}
}

func (m *RecordChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordChangeMessageFromJSON decodes and sanity-checks a message body.
func RecordChangeMessageFromJSON(data []byte) (*RecordChangeMessage, error) {
	var msg RecordChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Collection == "" || msg.ID == "" {
		return nil, ErrInvalidMessage
	}
	if msg.Operation != OpUpsert && msg.Operation != OpDelete {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
