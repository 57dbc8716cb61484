package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	kafkax "github.com/AydinMate/wedding-admin/internal/kafka"
	"github.com/AydinMate/wedding-admin/internal/orders"
)

// Store is what the notifier reads and writes; orders.Repo satisfies it.
type Store interface {
	GetNotification(ctx context.Context, id string) (*orders.Notification, error)
	MarkNotification(ctx context.Context, id string, to orders.NotificationStatus, lastErr string) error
	FindOrder(ctx context.Context, orderID string) (*orders.Order, error)
	OrderItems(ctx context.Context, orderID string) ([]orders.OrderItem, error)
	ProductDetails(ctx context.Context, ids []string) ([]orders.ProductDetail, error)
}

type Service struct {
	Store         Store
	Sender        Sender
	Dedup         orders.Deduper // optional
	BusinessName  string
	PickupAddress []string
	Location      *time.Location
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// HandleReceiptRequested is the consumer handler for receipt requests. A send
// failure marks the row FAILED so the relay offers it again.
func (s *Service) HandleReceiptRequested(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.Header(m, kafkax.HeaderEventType); t != "" && t != orders.EventReceiptRequested {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.WithError(err).Warn("drop undecodable message")
		return nil
	}
	if env.EventType != orders.EventReceiptRequested {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.ReceiptRequestedPayload](env.Payload)
	if err != nil {
		log.WithError(err).WithField("event_id", env.EventID).Warn("drop undecodable payload")
		return nil
	}
	logger := log.WithFields(log.Fields{"notification_id": p.NotificationID, "order_id": p.OrderID, "event_id": env.EventID})

	if s.Dedup != nil && s.Dedup.Seen(ctx, p.NotificationID) {
		logger.Debug("receipt already sent")
		return nil
	}
	n, err := s.Store.GetNotification(ctx, p.NotificationID)
	if errors.Is(err, orders.ErrNotFound) {
		logger.Warn("receipt request for unknown notification")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "load notification")
	}
	if n.Status == orders.NotificationSent {
		s.markSeen(ctx, n.ID)
		return nil
	}

	email, err := s.compose(ctx, *n)
	if err != nil {
		s.fail(ctx, logger, n.ID, err)
		return err
	}
	msgID, err := s.Sender.Send(ctx, email)
	if err != nil {
		s.fail(ctx, logger, n.ID, err)
		return errors.Wrap(err, "send receipt")
	}
	if err := s.Store.MarkNotification(ctx, n.ID, orders.NotificationSent, ""); err != nil {
		return errors.Wrap(err, "mark receipt sent")
	}
	s.markSeen(ctx, n.ID)
	logger.WithFields(log.Fields{"recipient": n.Recipient, "message_id": msgID}).Info("receipt sent")
	return nil
}

func (s *Service) compose(ctx context.Context, n orders.Notification) (Email, error) {
	o, err := s.Store.FindOrder(ctx, n.OrderID)
	if err != nil {
		return Email{}, errors.Wrap(err, "load order")
	}
	items, err := s.Store.OrderItems(ctx, o.ID)
	if err != nil {
		return Email{}, errors.Wrap(err, "load order items")
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []orders.ProductDetail
	if len(ids) > 0 {
		if products, err = s.Store.ProductDetails(ctx, ids); err != nil {
			return Email{}, errors.Wrap(err, "load order products")
		}
	}

	r := BuildReceipt(n, *o, items, products, ReceiptOptions{
		BusinessName:  s.BusinessName,
		PickupAddress: s.PickupAddress,
		Location:      s.Location,
		Now:           s.now(),
	})
	html, err := RenderReceipt(r)
	if err != nil {
		return Email{}, err
	}
	return Email{To: n.Recipient, Subject: r.Subject(), HTML: html}, nil
}

func (s *Service) fail(ctx context.Context, logger *log.Entry, id string, cause error) {
	logger.WithError(cause).Error("receipt delivery failed")
	if err := s.Store.MarkNotification(ctx, id, orders.NotificationFailed, cause.Error()); err != nil {
		logger.WithError(err).Error("mark receipt failed")
	}
}

func (s *Service) markSeen(ctx context.Context, id string) {
	if s.Dedup != nil {
		s.Dedup.Mark(ctx, id)
	}
}
