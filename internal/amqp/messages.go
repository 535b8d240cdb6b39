package amqp

import (
	"encoding/json"
	"time"
)

// PaymentSyncMessage tells the worker a pending payment is ready to push.
// It carries only the ledger id; the worker fetches the full payment from
// the database so the message never goes stale.
type PaymentSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPaymentSyncMessage creates a sync message for a ledger entry.
func NewPaymentSyncMessage(id int64) *PaymentSyncMessage {
	return &PaymentSyncMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *PaymentSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentSyncMessageFromJSON creates a message from JSON bytes.
func PaymentSyncMessageFromJSON(data []byte) (*PaymentSyncMessage, error) {
	var msg PaymentSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
