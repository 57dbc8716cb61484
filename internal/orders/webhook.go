package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const EventCheckoutCompleted = "checkout.session.completed"

type ReceiptMode string

const (
	ReceiptAll        ReceiptMode = "all"
	ReceiptPickupOnly ReceiptMode = "pickup-only"
)

type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

func (a Address) String() string {
	return JoinAddress(a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country)
}

// PaymentEvent is a verified provider event. Checkout fields are only set for
// completed checkout sessions.
type PaymentEvent struct {
	ID           string
	Type         string
	OrderID      string
	CustomerName string
	Email        string
	Phone        string
	Address      Address
}

// WebhookVerifier checks the provider signature and decodes the event.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signature string) (*PaymentEvent, error)
}

// Deduper is a fast-path replay filter in front of the database guard.
type Deduper interface {
	Seen(ctx context.Context, eventID string) bool
	Mark(ctx context.Context, eventID string)
}

type WebhookOutcome string

const (
	OutcomeApplied      WebhookOutcome = "applied"
	OutcomeIgnored      WebhookOutcome = "ignored"
	OutcomeDuplicate    WebhookOutcome = "duplicate"
	OutcomeUnknownOrder WebhookOutcome = "unknown_order"
)

// PaymentReconciler applies a completed checkout to its order exactly once.
type PaymentReconciler struct {
	Store    Store
	Verifier WebhookVerifier
	Dedup    Deduper      // optional
	Cache    RevenueCache // optional
	Mode     ReceiptMode
	Now      func() time.Time
	NewID    func() string
}

func (r *PaymentReconciler) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r *PaymentReconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// ShouldNotify reports whether a receipt is sent for an order with the given disposition.
func (m ReceiptMode) ShouldNotify(isDelivery bool) bool {
	if m == ReceiptPickupOnly {
		return !isDelivery
	}
	return true
}

// Handle verifies the payload and reconciles the order. A signature failure is
// the only error that carries ErrSignature; nothing is written in that case.
func (r *PaymentReconciler) Handle(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	ev, err := r.Verifier.VerifyEvent(payload, signature)
	if err != nil {
		return "", errors.WithMessage(ErrSignature, err.Error())
	}
	logger := log.WithFields(log.Fields{"event_id": ev.ID, "event_type": ev.Type, "order_id": ev.OrderID})

	if ev.Type != EventCheckoutCompleted {
		logger.Debug("webhook event ignored")
		return OutcomeIgnored, nil
	}
	if ev.OrderID == "" {
		logger.Warn("completed checkout without order id metadata")
		return OutcomeIgnored, nil
	}
	if r.Dedup != nil && r.Dedup.Seen(ctx, ev.ID) {
		logger.Info("webhook replay skipped")
		return OutcomeDuplicate, nil
	}

	outcome := OutcomeApplied
	var storeID string
	err = r.Store.InTx(ctx, func(q Queries) error {
		fresh, err := q.RecordPaymentEvent(ctx, ev.ID, ev.OrderID)
		if err != nil {
			return errors.Wrap(err, "record payment event")
		}
		if !fresh {
			outcome = OutcomeDuplicate
			return nil
		}
		order, err := q.FindOrder(ctx, ev.OrderID)
		if errors.Is(err, ErrNotFound) {
			outcome = OutcomeUnknownOrder
			return nil
		}
		if err != nil {
			return err
		}
		storeID = order.StoreID

		if err := q.MarkOrderPaid(ctx, order.ID, ev.Address.String(), ev.Phone, ev.CustomerName); err != nil {
			return errors.Wrap(err, "mark order paid")
		}
		if _, err := q.MarkOrderHiresPaid(ctx, order.ID); err != nil {
			return errors.Wrap(err, "mark hires paid")
		}

		if ev.Email == "" || !r.Mode.ShouldNotify(order.IsDelivery) {
			return nil
		}
		n := &Notification{
			ID:           r.newID(),
			OrderID:      order.ID,
			EventID:      ev.ID,
			Kind:         KindReceipt,
			Recipient:    ev.Email,
			CustomerName: ev.CustomerName,
			Line1:        ev.Address.Line1,
			Line2:        ev.Address.Line2,
			City:         ev.Address.City,
			State:        ev.Address.State,
			PostalCode:   ev.Address.PostalCode,
			Country:      ev.Address.Country,
			Status:       NotificationPending,
			CreatedAt:    r.now(),
		}
		_, err = q.EnqueueNotification(ctx, n)
		return errors.Wrap(err, "enqueue receipt")
	})
	if err != nil {
		return "", err
	}

	if r.Dedup != nil {
		r.Dedup.Mark(ctx, ev.ID)
	}
	if storeID != "" && r.Cache != nil {
		r.Cache.InvalidateRevenue(ctx, storeID)
	}
	logger.WithField("outcome", outcome).Info("payment webhook handled")
	return outcome, nil
}
