package orders

import "time"

// NotificationStatus tracks a receipt through the outbox.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "PENDING"
	NotificationPublished NotificationStatus = "PUBLISHED"
	NotificationSent      NotificationStatus = "SENT"
	NotificationFailed    NotificationStatus = "FAILED"
)

var validNext = map[NotificationStatus]map[NotificationStatus]bool{
	NotificationPending:   {NotificationPublished: true, NotificationSent: true, NotificationFailed: true},
	NotificationPublished: {NotificationSent: true, NotificationFailed: true},
	NotificationFailed:    {NotificationPublished: true, NotificationSent: true, NotificationFailed: true},
	NotificationSent:      {},
}

func CanTransition(from, to NotificationStatus) bool {
	return validNext[from][to]
}

const KindReceipt = "RECEIPT"

// Notification is an outbox row recorded in the same transaction as the paid transition.
type Notification struct {
	ID           string
	OrderID      string
	EventID      string
	Kind         string
	Recipient    string
	CustomerName string
	Line1        string
	Line2        string
	City         string
	State        string
	PostalCode   string
	Country      string
	Status       NotificationStatus
	Attempts     int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SentAt       *time.Time
}

// Relayable reports whether the relay should (re)publish the row. A PUBLISHED
// row that the notifier has not settled within staleAfter is offered again.
func (n Notification) Relayable(now time.Time, maxAttempts int, staleAfter time.Duration) bool {
	if n.Attempts >= maxAttempts {
		return false
	}
	switch n.Status {
	case NotificationPending, NotificationFailed:
		return true
	case NotificationPublished:
		return staleAfter > 0 && n.UpdatedAt.Before(now.Add(-staleAfter))
	}
	return false
}
