package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"

	"github.com/google/uuid"
)

type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		return true
	}
	return false
}

// TransactionEvent carries a snapshot of the transaction at the time of the
// change. Deleted events only carry the ids.
type TransactionEvent struct {
	MessageID     string            `json:"messageId"`
	Type          EventType         `json:"type"`
	TransactionID int64             `json:"transactionId"`
	UserID        int64             `json:"userId"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewTransactionEvent creates an event with a fresh message id.
func NewTransactionEvent(typ EventType, tx core.Transaction) *TransactionEvent {
	ev := &TransactionEvent{
		MessageID:     uuid.NewString(),
		Type:          typ,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Timestamp:     time.Now().UTC(),
	}
	if typ != TransactionDeleted {
		snapshot := tx
		ev.Transaction = &snapshot
	}
	return ev
}

// ToJSON converts the message to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and checks an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.Type != TransactionDeleted && ev.Transaction == nil {
		return nil, fmt.Errorf("%s event without transaction", ev.Type)
	}
	return &ev, nil
}
