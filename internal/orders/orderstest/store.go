// Package orderstest provides an in-memory orders.Store for tests.
package orderstest

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/AydinMate/wedding-admin/internal/orders"
)

type state struct {
	owners        map[string]string // store id -> user id
	products      map[string]orders.Product
	details       map[string]orders.ProductDetail
	orders        map[string]orders.Order
	items         []orders.OrderItem
	hires         []orders.ProductHire
	paymentEvents map[string]string
	notifications []orders.Notification
}

func (s *state) clone() *state {
	c := &state{
		owners:        make(map[string]string, len(s.owners)),
		products:      make(map[string]orders.Product, len(s.products)),
		details:       make(map[string]orders.ProductDetail, len(s.details)),
		orders:        make(map[string]orders.Order, len(s.orders)),
		items:         append([]orders.OrderItem(nil), s.items...),
		hires:         append([]orders.ProductHire(nil), s.hires...),
		paymentEvents: make(map[string]string, len(s.paymentEvents)),
		notifications: append([]orders.Notification(nil), s.notifications...),
	}
	for k, v := range s.owners {
		c.owners[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.details {
		c.details[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.paymentEvents {
		c.paymentEvents[k] = v
	}
	return c
}

// Store keeps every table in memory. InTx runs fn against a copy that replaces
// the live state only when fn succeeds. Not safe for concurrent use.
type Store struct {
	st    *state
	fails map[string]error

	// Now is the outbox clock; time.Now when nil.
	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		st: &state{
			owners:        map[string]string{},
			products:      map[string]orders.Product{},
			details:       map[string]orders.ProductDetail{},
			orders:        map[string]orders.Order{},
			paymentEvents: map[string]string{},
		},
		fails: map[string]error{},
	}
}

// FailOn makes the named method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	if err == nil {
		delete(s.fails, method)
		return
	}
	s.fails[method] = err
}

func (s *Store) fail(method string) error { return s.fails[method] }

func (s *Store) AddStore(storeID, userID string) {
	s.st.owners[storeID] = userID
}

func (s *Store) AddProduct(p orders.Product, colour, size, image string) {
	s.st.products[p.ID] = p
	s.st.details[p.ID] = orders.ProductDetail{
		ID: p.ID, StoreID: p.StoreID, Name: p.Name, Colour: colour, Size: size, Price: p.Price, ImageURL: image,
	}
}

func (s *Store) Orders() []orders.Order {
	out := make([]orders.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AllItems() []orders.OrderItem { return append([]orders.OrderItem(nil), s.st.items...) }

func (s *Store) AllHires() []orders.ProductHire {
	return append([]orders.ProductHire(nil), s.st.hires...)
}

func (s *Store) Notifications() []orders.Notification {
	return append([]orders.Notification(nil), s.st.notifications...)
}

func (s *Store) PaymentEvents() int { return len(s.st.paymentEvents) }

func (s *Store) InTx(ctx context.Context, fn func(q orders.Queries) error) error {
	if err := s.fail("InTx"); err != nil {
		return err
	}
	tx := &Store{st: s.st.clone(), fails: s.fails, Now: s.Now}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) StoreOwnedBy(_ context.Context, storeID, userID string) (bool, error) {
	if err := s.fail("StoreOwnedBy"); err != nil {
		return false, err
	}
	owner, ok := s.st.owners[storeID]
	return ok && owner == userID, nil
}

func (s *Store) ProductsByIDs(_ context.Context, ids []string) ([]orders.Product, error) {
	if err := s.fail("ProductsByIDs"); err != nil {
		return nil, err
	}
	var out []orders.Product
	seen := map[string]bool{}
	for _, id := range ids {
		if p, ok := s.st.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]orders.Product, error) {
	var out []orders.Product
	for _, p := range s.st.products {
		if p.StoreID == storeID && !p.IsArchived {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ProductDetails(_ context.Context, ids []string) ([]orders.ProductDetail, error) {
	out := []orders.ProductDetail{}
	seen := map[string]bool{}
	for _, id := range ids {
		if d, ok := s.st.details[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertOrder(_ context.Context, o *orders.Order) error {
	if err := s.fail("InsertOrder"); err != nil {
		return err
	}
	if _, dup := s.st.orders[o.ID]; dup {
		return errors.Errorf("duplicate order %s", o.ID)
	}
	s.st.orders[o.ID] = *o
	return nil
}

func (s *Store) UpdateOrder(_ context.Context, o *orders.Order) error {
	if err := s.fail("UpdateOrder"); err != nil {
		return err
	}
	cur, ok := s.st.orders[o.ID]
	if !ok {
		return errors.WithMessage(orders.ErrNotFound, o.ID)
	}
	cur.IsPaid, cur.IsDelivery, cur.IsCash = o.IsPaid, o.IsDelivery, o.IsCash
	cur.HireDate, cur.DropoffAddress, cur.CustomerName = o.HireDate, o.DropoffAddress, o.CustomerName
	cur.Price, cur.UpdatedAt = o.Price, o.UpdatedAt
	s.st.orders[o.ID] = cur
	return nil
}

func (s *Store) GetOrder(_ context.Context, storeID, orderID string) (*orders.Order, error) {
	o, ok := s.st.orders[orderID]
	if !ok || o.StoreID != storeID {
		return nil, errors.WithMessage(orders.ErrNotFound, "order "+orderID)
	}
	return &o, nil
}

func (s *Store) FindOrder(_ context.Context, orderID string) (*orders.Order, error) {
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, errors.WithMessage(orders.ErrNotFound, "order "+orderID)
	}
	return &o, nil
}

func (s *Store) DeleteOrder(_ context.Context, orderID string) (int64, error) {
	if err := s.fail("DeleteOrder"); err != nil {
		return 0, err
	}
	for _, it := range s.st.items {
		if it.OrderID == orderID {
			return 0, errors.Errorf("order %s still has items", orderID)
		}
	}
	for _, h := range s.st.hires {
		if h.OrderID == orderID {
			return 0, errors.Errorf("order %s still has hires", orderID)
		}
	}
	if _, ok := s.st.orders[orderID]; !ok {
		return 0, nil
	}
	delete(s.st.orders, orderID)
	return 1, nil
}

func (s *Store) ListOrders(_ context.Context, storeID string) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range s.st.orders {
		if o.StoreID == storeID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) PaidOrdersBetween(_ context.Context, storeID string, from, to time.Time) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range s.st.orders {
		if o.StoreID != storeID || !(o.IsPaid || o.IsCash) {
			continue
		}
		if !o.HireDate.Before(from) && o.HireDate.Before(to) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HireDate.Before(out[j].HireDate) })
	return out, nil
}

func (s *Store) PaidRevenue(_ context.Context, storeID string) (decimal.Decimal, error) {
	if err := s.fail("PaidRevenue"); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, o := range s.st.orders {
		if o.StoreID == storeID && (o.IsPaid || o.IsCash) {
			sum = sum.Add(o.Price)
		}
	}
	return sum, nil
}

func (s *Store) MarkOrderPaid(_ context.Context, orderID, address, phone, customerName string) error {
	if err := s.fail("MarkOrderPaid"); err != nil {
		return err
	}
	o, ok := s.st.orders[orderID]
	if !ok {
		return errors.WithMessage(orders.ErrNotFound, orderID)
	}
	o.IsPaid, o.Address, o.Phone, o.CustomerName = true, address, phone, customerName
	s.st.orders[orderID] = o
	return nil
}

func (s *Store) InsertOrderItem(_ context.Context, it orders.OrderItem) error {
	if err := s.fail("InsertOrderItem"); err != nil {
		return err
	}
	for _, cur := range s.st.items {
		if cur.ID == it.ID {
			return errors.Errorf("duplicate order item %s", it.ID)
		}
	}
	s.st.items = append(s.st.items, it)
	return nil
}

func (s *Store) OrderItems(_ context.Context, orderID string) ([]orders.OrderItem, error) {
	out := []orders.OrderItem{}
	for _, it := range s.st.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TakenItemIDs(_ context.Context, ids []string) ([]string, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []string
	for _, it := range s.st.items {
		if want[it.ID] {
			out = append(out, it.ID)
		}
	}
	return out, nil
}

func (s *Store) DeleteOrderItems(_ context.Context, orderID string, ids []string) (int64, error) {
	if err := s.fail("DeleteOrderItems"); err != nil {
		return 0, err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var n int64
	kept := s.st.items[:0:0]
	for _, it := range s.st.items {
		if it.OrderID == orderID && (ids == nil || drop[it.ID]) {
			n++
			continue
		}
		kept = append(kept, it)
	}
	s.st.items = kept
	return n, nil
}

func (s *Store) InsertHire(_ context.Context, h *orders.ProductHire) error {
	if err := s.fail("InsertHire"); err != nil {
		return err
	}
	s.st.hires = append(s.st.hires, *h)
	return nil
}

func (s *Store) UpdateHire(_ context.Context, h orders.ProductHire) error {
	if err := s.fail("UpdateHire"); err != nil {
		return err
	}
	for i := range s.st.hires {
		if s.st.hires[i].ID == h.ID {
			s.st.hires[i].HireDate, s.st.hires[i].IsPaid, s.st.hires[i].IsCash = h.HireDate, h.IsPaid, h.IsCash
			return nil
		}
	}
	return errors.WithMessage(orders.ErrNotFound, "hire "+h.ID)
}

func (s *Store) GetHire(_ context.Context, storeID, hireID string) (*orders.ProductHire, error) {
	for _, h := range s.st.hires {
		if h.ID == hireID && h.StoreID == storeID {
			return &h, nil
		}
	}
	return nil, errors.WithMessage(orders.ErrNotFound, "hire "+hireID)
}

func (s *Store) ListHires(_ context.Context, storeID string) ([]orders.ProductHire, error) {
	out := []orders.ProductHire{}
	for _, h := range s.st.hires {
		if h.StoreID != storeID {
			continue
		}
		if p, ok := s.st.products[h.ProductID]; ok {
			h.Product = &p
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) OrderHires(_ context.Context, orderID string) ([]orders.ProductHire, error) {
	var out []orders.ProductHire
	for _, h := range s.st.hires {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) DeleteHires(_ context.Context, ids []string) (int64, error) {
	if err := s.fail("DeleteHires"); err != nil {
		return 0, err
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return s.deleteHiresWhere(func(h orders.ProductHire) bool { return drop[h.ID] }), nil
}

func (s *Store) DeleteOrderHires(_ context.Context, orderID string) (int64, error) {
	if err := s.fail("DeleteOrderHires"); err != nil {
		return 0, err
	}
	return s.deleteHiresWhere(func(h orders.ProductHire) bool { return h.OrderID == orderID }), nil
}

func (s *Store) deleteHiresWhere(match func(orders.ProductHire) bool) int64 {
	var n int64
	kept := s.st.hires[:0:0]
	for _, h := range s.st.hires {
		if match(h) {
			n++
			continue
		}
		kept = append(kept, h)
	}
	s.st.hires = kept
	return n
}

func (s *Store) MarkOrderHiresPaid(_ context.Context, orderID string) (int64, error) {
	if err := s.fail("MarkOrderHiresPaid"); err != nil {
		return 0, err
	}
	var n int64
	for i := range s.st.hires {
		if s.st.hires[i].OrderID == orderID {
			s.st.hires[i].IsPaid = true
			n++
		}
	}
	return n, nil
}

func (s *Store) CountHires(_ context.Context, f orders.HireFilter) (int, error) {
	if err := s.fail("CountHires"); err != nil {
		return 0, err
	}
	n := 0
	for _, h := range s.st.hires {
		if h.ProductID != f.ProductID || (f.StoreID != "" && h.StoreID != f.StoreID) {
			continue
		}
		if f.ExcludeOrderID != "" && h.OrderID == f.ExcludeOrderID {
			continue
		}
		if !h.HireDate.Before(f.From) && !h.HireDate.After(f.To) {
			n++
		}
	}
	return n, nil
}

func (s *Store) RecordPaymentEvent(_ context.Context, eventID, orderID string) (bool, error) {
	if err := s.fail("RecordPaymentEvent"); err != nil {
		return false, err
	}
	if _, dup := s.st.paymentEvents[eventID]; dup {
		return false, nil
	}
	s.st.paymentEvents[eventID] = orderID
	return true, nil
}

func (s *Store) EnqueueNotification(_ context.Context, n *orders.Notification) (bool, error) {
	if err := s.fail("EnqueueNotification"); err != nil {
		return false, err
	}
	for _, cur := range s.st.notifications {
		if cur.OrderID == n.OrderID && cur.Kind == n.Kind {
			return false, nil
		}
	}
	if n.Status == "" {
		n.Status = orders.NotificationPending
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	s.st.notifications = append(s.st.notifications, *n)
	return true, nil
}

// AddNotification seeds an outbox row as is.
func (s *Store) AddNotification(n orders.Notification) {
	s.st.notifications = append(s.st.notifications, n)
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) notification(id string) (int, bool) {
	for i, n := range s.st.notifications {
		if n.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Store) GetNotification(_ context.Context, id string) (*orders.Notification, error) {
	i, ok := s.notification(id)
	if !ok {
		return nil, errors.WithMessage(orders.ErrNotFound, "notification "+id)
	}
	n := s.st.notifications[i]
	return &n, nil
}

func (s *Store) RelayOutbox(ctx context.Context, limit, maxAttempts int, staleAfter time.Duration, publish func(context.Context, orders.Notification) error) (int, error) {
	if err := s.fail("RelayOutbox"); err != nil {
		return 0, err
	}
	now := s.now()
	var batch []int
	for i, n := range s.st.notifications {
		if n.Relayable(now, maxAttempts, staleAfter) {
			batch = append(batch, i)
		}
	}
	sort.SliceStable(batch, func(a, b int) bool {
		return s.st.notifications[batch[a]].CreatedAt.Before(s.st.notifications[batch[b]].CreatedAt)
	})
	if len(batch) > limit {
		batch = batch[:limit]
	}

	sent := 0
	for _, i := range batch {
		n := &s.st.notifications[i]
		if err := publish(ctx, *n); err != nil {
			return sent, err
		}
		if n.Status == orders.NotificationPublished {
			n.Attempts++
		}
		n.Status = orders.NotificationPublished
		n.UpdatedAt = now
		sent++
	}
	return sent, nil
}

func (s *Store) MarkNotification(_ context.Context, id string, to orders.NotificationStatus, lastErr string) error {
	if err := s.fail("MarkNotification"); err != nil {
		return err
	}
	i, ok := s.notification(id)
	if !ok {
		return errors.WithMessage(orders.ErrNotFound, "notification "+id)
	}
	n := &s.st.notifications[i]
	if !orders.CanTransition(n.Status, to) {
		return errors.Wrapf(orders.ErrInvalidTransition, "%s -> %s", n.Status, to)
	}
	now := s.now()
	if to == orders.NotificationFailed {
		n.Attempts++
	}
	if to == orders.NotificationSent {
		n.SentAt = &now
	}
	n.Status, n.LastError, n.UpdatedAt = to, lastErr, now
	return nil
}
