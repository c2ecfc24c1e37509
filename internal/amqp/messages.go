package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// Routing keys on the events exchange.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionDeleted = "transaction.deleted"
)

// TransactionEvent announces a committed change to a transaction.
// Consumers that need more than this should read the store.
type TransactionEvent struct {
	Event         string               `json:"event"`
	TransactionID int64                `json:"transactionId"`
	OwnerID       int64                `json:"ownerId"`
	Type          core.TransactionType `json:"type"`
	Amount        core.Money           `json:"amount"`
	Date          time.Time            `json:"date"`
	Timestamp     time.Time            `json:"timestamp"`
}

func NewTransactionEvent(event string, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Event:         event,
		TransactionID: t.ID,
		OwnerID:       t.OwnerID,
		Type:          t.Type,
		Amount:        t.Amount,
		Date:          t.Date.UTC(),
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
