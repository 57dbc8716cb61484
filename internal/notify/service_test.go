package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/AydinMate/wedding-admin/internal/kafka"
	"github.com/AydinMate/wedding-admin/internal/orders"
	"github.com/AydinMate/wedding-admin/internal/redisx"
)

type fakeStore struct {
	n        *orders.Notification
	order    orders.Order
	items    []orders.OrderItem
	products []orders.ProductDetail
	marks    []orders.NotificationStatus
}

func (s *fakeStore) GetNotification(_ context.Context, id string) (*orders.Notification, error) {
	if s.n == nil || s.n.ID != id {
		return nil, errors.WithMessage(orders.ErrNotFound, id)
	}
	cp := *s.n
	return &cp, nil
}

func (s *fakeStore) MarkNotification(_ context.Context, id string, to orders.NotificationStatus, lastErr string) error {
	if !orders.CanTransition(s.n.Status, to) {
		return errors.New("invalid transition")
	}
	s.n.Status = to
	s.n.LastError = lastErr
	if to == orders.NotificationFailed {
		s.n.Attempts++
	}
	s.marks = append(s.marks, to)
	return nil
}

func (s *fakeStore) FindOrder(_ context.Context, id string) (*orders.Order, error) {
	if s.order.ID != id {
		return nil, errors.WithMessage(orders.ErrNotFound, id)
	}
	o := s.order
	return &o, nil
}

func (s *fakeStore) OrderItems(context.Context, string) ([]orders.OrderItem, error) {
	return s.items, nil
}

func (s *fakeStore) ProductDetails(context.Context, []string) ([]orders.ProductDetail, error) {
	return s.products, nil
}

type fakeSender struct {
	sent []Email
	err  error
}

func (s *fakeSender) Send(_ context.Context, e Email) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, e)
	return "msg-1", nil
}

func newNotifier(t *testing.T, isDelivery bool) (*Service, *fakeStore, *fakeSender) {
	t.Helper()
	n, o, items, products := receiptFixture(isDelivery)
	n.Status = orders.NotificationPublished
	st := &fakeStore{n: &n, order: o, items: items, products: products}
	snd := &fakeSender{}

	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })

	svc := &Service{
		Store:        st,
		Sender:       snd,
		Dedup:        &redisx.Deduper{Redis: rdb, Consumer: "notifier"},
		BusinessName: "Diamond Wedding Hire",
		Now:          func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
	return svc, st, snd
}

func receiptMessage(eventType, notificationID string) kafkago.Message {
	env := orders.Envelope{
		EventID:   "e-" + notificationID,
		EventType: eventType,
		Payload:   kafkax.MustMarshal(orders.ReceiptRequestedPayload{NotificationID: notificationID, OrderID: "order-1"}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleReceiptRequestedSendsOnce(t *testing.T) {
	svc, st, snd := newNotifier(t, true)
	ctx := context.Background()
	msg := receiptMessage(orders.EventReceiptRequested, "n-1")

	require.NoError(t, svc.HandleReceiptRequested(ctx, msg))
	require.Len(t, snd.sent, 1)
	assert.Equal(t, "jane@example.com", snd.sent[0].To)
	assert.Equal(t, "Diamond Wedding Hire Hire Receipt", snd.sent[0].Subject)
	assert.Contains(t, snd.sent[0].HTML, "Floral Arch")
	assert.Equal(t, orders.NotificationSent, st.n.Status)

	require.NoError(t, svc.HandleReceiptRequested(ctx, msg))
	assert.Len(t, snd.sent, 1)
}

func TestHandleReceiptRequestedSkipsSentRow(t *testing.T) {
	svc, st, snd := newNotifier(t, false)
	svc.Dedup = nil
	st.n.Status = orders.NotificationSent

	require.NoError(t, svc.HandleReceiptRequested(context.Background(), receiptMessage(orders.EventReceiptRequested, "n-1")))
	assert.Empty(t, snd.sent)
	assert.Empty(t, st.marks)
}

func TestHandleReceiptRequestedMarksFailure(t *testing.T) {
	svc, st, snd := newNotifier(t, false)
	snd.err = errors.New("provider unavailable")

	err := svc.HandleReceiptRequested(context.Background(), receiptMessage(orders.EventReceiptRequested, "n-1"))
	require.Error(t, err)
	assert.Equal(t, orders.NotificationFailed, st.n.Status)
	assert.Equal(t, 1, st.n.Attempts)
	assert.Contains(t, st.n.LastError, "provider unavailable")

	snd.err = nil
	require.NoError(t, svc.HandleReceiptRequested(context.Background(), receiptMessage(orders.EventReceiptRequested, "n-1")))
	assert.Equal(t, orders.NotificationSent, st.n.Status)
	assert.Len(t, snd.sent, 1)
}

func TestHandleReceiptRequestedIgnoresNoise(t *testing.T) {
	svc, st, snd := newNotifier(t, false)
	ctx := context.Background()

	require.NoError(t, svc.HandleReceiptRequested(ctx, kafkago.Message{Value: []byte("not json")}))
	require.NoError(t, svc.HandleReceiptRequested(ctx, receiptMessage("SomethingElse", "n-1")))
	require.NoError(t, svc.HandleReceiptRequested(ctx, receiptMessage(orders.EventReceiptRequested, "n-404")))
	assert.Empty(t, snd.sent)
	assert.Empty(t, st.marks)
}

func TestHandleReceiptRequestedSkipsOtherEventHeaders(t *testing.T) {
	svc, st, snd := newNotifier(t, false)
	msg := receiptMessage(orders.EventReceiptRequested, "n-1")
	msg.Headers = kafkax.EventHeaders("OrderArchived", 1)

	require.NoError(t, svc.HandleReceiptRequested(context.Background(), msg))
	assert.Empty(t, snd.sent)
	assert.Empty(t, st.marks)
}
