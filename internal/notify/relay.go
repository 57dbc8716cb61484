package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/AydinMate/wedding-admin/internal/kafka"
	"github.com/AydinMate/wedding-admin/internal/orders"
)

type Outbox interface {
	RelayOutbox(ctx context.Context, limit, maxAttempts int, staleAfter time.Duration, publish func(context.Context, orders.Notification) error) (int, error)
}

type Publisher interface {
	Send(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Relay moves receipt requests from the outbox table to Kafka.
type Relay struct {
	Outbox      Outbox
	Publisher   Publisher
	ServiceName string
	Batch       int
	MaxAttempts int
	StaleAfter  time.Duration // PUBLISHED rows not settled by then are sent again
	Interval    time.Duration
	Now         func() time.Time
}

func (r *Relay) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Relay) publish(ctx context.Context, n orders.Notification) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventReceiptRequested,
		EventVersion:  1,
		OccurredAt:    r.now(),
		Producer:      r.ServiceName,
		TraceID:       n.EventID,
		CorrelationID: n.OrderID,
		Payload: kafkax.MustMarshal(orders.ReceiptRequestedPayload{
			NotificationID: n.ID,
			OrderID:        n.OrderID,
			Recipient:      n.Recipient,
		}),
	}
	return r.Publisher.Send(ctx, orders.PartitionKey(n.OrderID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventReceiptRequested, 1)...)
}

func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	return r.Outbox.RelayOutbox(ctx, r.Batch, r.MaxAttempts, r.StaleAfter, r.publish)
}

// Run polls the outbox every Interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	log.WithField("interval", interval).Info("outbox relay started")
	for {
		n, err := r.RunOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			log.WithError(err).WithField("published", n).Error("outbox relay")
		case n > 0:
			log.WithField("published", n).Info("outbox relayed")
		}
		select {
		case <-ctx.Done():
			log.Info("outbox relay stopped")
			return
		case <-t.C:
		}
	}
}
