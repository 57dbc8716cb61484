package orders

import (
	"encoding/json"
	"time"
)

const (
	EventReceiptRequested = "ReceiptRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ReceiptRequestedPayload struct {
	NotificationID string `json:"notification_id"`
	OrderID        string `json:"order_id"`
	Recipient      string `json:"recipient"`
}
