package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// RevenueCache keeps the per-store revenue figure between order mutations.
// GetRevenue returns a version token that SetRevenue checks, so a figure
// computed before an invalidation is never cached after it.
type RevenueCache interface {
	GetRevenue(ctx context.Context, storeID string) (v decimal.Decimal, version string, ok bool)
	SetRevenue(ctx context.Context, storeID string, v decimal.Decimal, version string)
	InvalidateRevenue(ctx context.Context, storeID string)
}

// Service is the order/hire reconciler used by the admin dashboard.
type Service struct {
	Store Store
	Cache RevenueCache // optional
	Now   func() time.Time
	NewID func() string
}

type OrderInput struct {
	UserID         string
	StoreID        string
	OrderID        string // update only
	HireDate       time.Time
	IsDelivery     bool
	DropoffAddress string
	CustomerName   string
	IsPaid         bool
	IsCash         bool
	Items          Selection
}

type HireInput struct {
	UserID    string
	StoreID   string
	ProductID string
	HireDate  time.Time
	IsPaid    bool
	IsCash    bool
}

type DeleteResult struct {
	Count int64 `json:"count"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Authorize fails with ErrUnauthenticated when there is no principal and with
// ErrForbidden when the principal does not own the store.
func (s *Service) Authorize(ctx context.Context, userID, storeID string) error {
	return authorize(ctx, s.Store, userID, storeID)
}

func authorize(ctx context.Context, q Queries, userID, storeID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if storeID == "" {
		return invalid("store id is required")
	}
	ok, err := q.StoreOwnedBy(ctx, storeID, userID)
	if err != nil {
		return errors.Wrap(err, "check store owner")
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*Order, error) {
	if err := s.Authorize(ctx, in.UserID, in.StoreID); err != nil {
		return nil, err
	}
	if in.HireDate.IsZero() {
		return nil, invalid("hire date is required")
	}
	items, err := s.normalizeSelection(in.Items, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &Order{
		ID:             s.newID(),
		StoreID:        in.StoreID,
		IsPaid:         in.IsPaid,
		IsCash:         in.IsCash,
		HireDate:       in.HireDate.UTC(),
		IsDelivery:     in.IsDelivery,
		DropoffAddress: in.DropoffAddress,
		CustomerName:   in.CustomerName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.Store.InTx(ctx, func(q Queries) error {
		if err := checkStoreProducts(ctx, q, in.StoreID, items.ProductIDs()); err != nil {
			return err
		}
		total, err := ResolveTotal(ctx, q, items.ProductIDs())
		if err != nil {
			return err
		}
		order.Price = total
		if err := q.InsertOrder(ctx, order); err != nil {
			return errors.Wrap(err, "insert order")
		}
		for i := range items {
			items[i].OrderID = order.ID
			if err := q.InsertOrderItem(ctx, toOrderItem(items[i])); err != nil {
				return errors.Wrap(err, "insert order item")
			}
			if err := q.InsertHire(ctx, s.newHire(order, items[i].ProductID, now)); err != nil {
				return errors.Wrap(err, "insert hire")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Items = toOrderItems(items)
	s.invalidate(ctx, in.StoreID)
	log.WithFields(log.Fields{"order_id": order.ID, "store_id": order.StoreID, "items": len(items)}).Info("order created")
	return order, nil
}

// UpdateOrder replaces the order's selection and scalar fields in one transaction.
// Items whose client id and product are unchanged are kept, hires are re-dated in
// place per product, and only the difference is deleted or inserted.
func (s *Service) UpdateOrder(ctx context.Context, in OrderInput) (*Order, error) {
	if err := s.Authorize(ctx, in.UserID, in.StoreID); err != nil {
		return nil, err
	}
	if in.OrderID == "" {
		return nil, invalid("order id is required")
	}
	if in.Items == nil {
		return nil, invalid("order items are required")
	}
	items, err := s.normalizeSelection(in.Items, false)
	if err != nil {
		return nil, err
	}

	var order *Order
	err = s.Store.InTx(ctx, func(q Queries) error {
		var err error
		order, err = q.GetOrder(ctx, in.StoreID, in.OrderID)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := checkStoreProducts(ctx, q, in.StoreID, items.ProductIDs()); err != nil {
			return err
		}

		if !in.HireDate.IsZero() {
			order.HireDate = in.HireDate.UTC()
		}
		order.IsPaid = in.IsPaid
		order.IsCash = in.IsCash
		order.IsDelivery = in.IsDelivery
		order.DropoffAddress = in.DropoffAddress
		order.CustomerName = in.CustomerName
		order.UpdatedAt = s.now()

		if err := s.reconcileItems(ctx, q, order.ID, items); err != nil {
			return err
		}
		if err := s.reconcileHires(ctx, q, order, items); err != nil {
			return err
		}

		total, err := ResolveTotal(ctx, q, items.ProductIDs())
		if err != nil {
			return err
		}
		order.Price = total
		return errors.Wrap(q.UpdateOrder(ctx, order), "update order")
	})
	if err != nil {
		return nil, err
	}

	order.Items = toOrderItems(items)
	s.invalidate(ctx, in.StoreID)
	log.WithFields(log.Fields{"order_id": order.ID, "store_id": order.StoreID, "items": len(items)}).Info("order updated")
	return order, nil
}

func (s *Service) reconcileItems(ctx context.Context, q Queries, orderID string, items Selection) error {
	existing, err := q.OrderItems(ctx, orderID)
	if err != nil {
		return errors.Wrap(err, "load order items")
	}
	wanted := make(map[string]string, len(items))
	for _, it := range items {
		wanted[it.ID] = it.ProductID
	}
	have := make(map[string]string, len(existing))
	var removed []string
	for _, it := range existing {
		have[it.ID] = it.ProductID
		if pid, ok := wanted[it.ID]; !ok || pid != it.ProductID {
			removed = append(removed, it.ID)
		}
	}
	if len(removed) > 0 {
		if _, err := q.DeleteOrderItems(ctx, orderID, removed); err != nil {
			return errors.Wrap(err, "delete order items")
		}
	}

	// A new item keeps its client id unless another order already uses it.
	var fresh []string
	for _, it := range items {
		if _, own := have[it.ID]; !own {
			fresh = append(fresh, it.ID)
		}
	}
	if len(fresh) > 0 {
		taken, err := q.TakenItemIDs(ctx, fresh)
		if err != nil {
			return errors.Wrap(err, "check order item ids")
		}
		clash := make(map[string]bool, len(taken))
		for _, id := range taken {
			clash[id] = true
		}
		for i := range items {
			if _, own := have[items[i].ID]; !own && clash[items[i].ID] {
				items[i].ID = s.newID()
			}
		}
	}

	for _, it := range items {
		if pid, ok := have[it.ID]; ok && pid == it.ProductID {
			continue
		}
		if err := q.InsertOrderItem(ctx, toOrderItem(it)); err != nil {
			return errors.Wrap(err, "insert order item")
		}
	}
	return nil
}

func (s *Service) reconcileHires(ctx context.Context, q Queries, order *Order, items Selection) error {
	existing, err := q.OrderHires(ctx, order.ID)
	if err != nil {
		return errors.Wrap(err, "load order hires")
	}
	pool := make(map[string][]ProductHire)
	for _, h := range existing {
		pool[h.ProductID] = append(pool[h.ProductID], h)
	}

	now := s.now()
	for _, it := range items {
		if free := pool[it.ProductID]; len(free) > 0 {
			h := free[0]
			pool[it.ProductID] = free[1:]
			h.HireDate = order.HireDate
			h.IsPaid = order.IsPaid
			h.IsCash = order.IsCash
			if err := q.UpdateHire(ctx, h); err != nil {
				return errors.Wrap(err, "update hire")
			}
			continue
		}
		if err := q.InsertHire(ctx, s.newHire(order, it.ProductID, now)); err != nil {
			return errors.Wrap(err, "insert hire")
		}
	}

	var surplus []string
	for _, left := range pool {
		for _, h := range left {
			surplus = append(surplus, h.ID)
		}
	}
	if len(surplus) > 0 {
		if _, err := q.DeleteHires(ctx, surplus); err != nil {
			return errors.Wrap(err, "delete hires")
		}
	}
	return nil
}

// DeleteOrder removes the order's items, then its hires, then the order, in one transaction.
func (s *Service) DeleteOrder(ctx context.Context, userID, storeID, orderID string) (DeleteResult, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return DeleteResult{}, err
	}
	if orderID == "" {
		return DeleteResult{}, invalid("order id is required")
	}

	var res DeleteResult
	err := s.Store.InTx(ctx, func(q Queries) error {
		if _, err := q.GetOrder(ctx, storeID, orderID); err != nil {
			return err
		}
		if _, err := q.DeleteOrderItems(ctx, orderID, nil); err != nil {
			return errors.Wrap(err, "delete order items")
		}
		if _, err := q.DeleteOrderHires(ctx, orderID); err != nil {
			return errors.Wrap(err, "delete order hires")
		}
		n, err := q.DeleteOrder(ctx, orderID)
		if err != nil {
			return errors.Wrap(err, "delete order")
		}
		res.Count = n
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	s.invalidate(ctx, storeID)
	log.WithFields(log.Fields{"order_id": orderID, "store_id": storeID}).Info("order deleted")
	return res, nil
}

func (s *Service) GetOrder(ctx context.Context, userID, storeID, orderID string) (*Order, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}
	o, err := s.Store.GetOrder(ctx, storeID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Items, err = s.Store.OrderItems(ctx, o.ID); err != nil {
		return nil, errors.Wrap(err, "load order items")
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, userID, storeID string) ([]Order, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}
	return s.Store.ListOrders(ctx, storeID)
}

func (s *Service) ListProducts(ctx context.Context, userID, storeID string) ([]Product, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}
	return s.Store.ListProducts(ctx, storeID)
}

// CreateHire records a standalone reservation. Unlike the order path it refuses
// a product that is already hired on that day.
func (s *Service) CreateHire(ctx context.Context, in HireInput) (*ProductHire, error) {
	if err := s.Authorize(ctx, in.UserID, in.StoreID); err != nil {
		return nil, err
	}
	if in.ProductID == "" {
		return nil, invalid("product id is required")
	}
	if in.HireDate.IsZero() {
		return nil, invalid("hire date is required")
	}

	h := &ProductHire{
		ID:        s.newID(),
		StoreID:   in.StoreID,
		ProductID: in.ProductID,
		HireDate:  in.HireDate.UTC(),
		IsPaid:    in.IsPaid,
		IsCash:    in.IsCash,
		CreatedAt: s.now(),
	}
	err := s.Store.InTx(ctx, func(q Queries) error {
		ps, err := q.ProductsByIDs(ctx, []string{in.ProductID})
		if err != nil {
			return errors.Wrap(err, "load product")
		}
		if len(ps) == 0 || ps[0].StoreID != in.StoreID {
			return notFound("product", in.ProductID)
		}
		hired, err := IsProductHiredOnDate(ctx, q, in.StoreID, in.ProductID, in.HireDate, "")
		if err != nil {
			return err
		}
		if hired {
			return errors.WithMessagef(ErrConflict, "product %s on %s", in.ProductID, in.HireDate.UTC().Format("2006-01-02"))
		}
		return errors.Wrap(q.InsertHire(ctx, h), "insert hire")
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) DeleteHire(ctx context.Context, userID, storeID, hireID string) (DeleteResult, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return DeleteResult{}, err
	}
	if hireID == "" {
		return DeleteResult{}, invalid("hire id is required")
	}
	if _, err := s.Store.GetHire(ctx, storeID, hireID); err != nil {
		return DeleteResult{}, err
	}
	n, err := s.Store.DeleteHires(ctx, []string{hireID})
	if err != nil {
		return DeleteResult{}, errors.Wrap(err, "delete hire")
	}
	return DeleteResult{Count: n}, nil
}

func (s *Service) GetHire(ctx context.Context, userID, storeID, hireID string) (*ProductHire, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}
	return s.Store.GetHire(ctx, storeID, hireID)
}

func (s *Service) ListHires(ctx context.Context, userID, storeID string) ([]ProductHire, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}
	return s.Store.ListHires(ctx, storeID)
}

// Availability is the boolean predicate behind the order form's product picker.
func (s *Service) Availability(ctx context.Context, userID, storeID, productID string, date time.Time, excludeOrderID string) (bool, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return false, err
	}
	return IsProductHiredOnDate(ctx, s.Store, storeID, productID, date, excludeOrderID)
}

// normalizeSelection validates the selection. With fresh set every item gets
// a server id; otherwise only items without one do.
func (s *Service) normalizeSelection(in Selection, fresh bool) (Selection, error) {
	out := make(Selection, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, it := range in {
		if it.ProductID == "" {
			return nil, invalid("product id is required")
		}
		if fresh || it.ID == "" {
			it.ID = s.newID()
		}
		if _, dup := seen[it.ID]; dup {
			return nil, invalid("duplicate order item id " + it.ID)
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}

// checkStoreProducts rejects product ids that are unknown or belong to another store.
func checkStoreProducts(ctx context.Context, q Queries, storeID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ps, err := q.ProductsByIDs(ctx, uniq(ids))
	if err != nil {
		return errors.Wrap(err, "load products")
	}
	owned := make(map[string]bool, len(ps))
	for _, p := range ps {
		owned[p.ID] = p.StoreID == storeID
	}
	for _, id := range ids {
		if !owned[id] {
			return invalid("product " + id + " does not belong to this store")
		}
	}
	return nil
}

func (s *Service) newHire(o *Order, productID string, now time.Time) *ProductHire {
	return &ProductHire{
		ID:        s.newID(),
		StoreID:   o.StoreID,
		ProductID: productID,
		OrderID:   o.ID,
		HireDate:  o.HireDate,
		IsPaid:    o.IsPaid,
		IsCash:    o.IsCash,
		CreatedAt: now,
	}
}

func (s *Service) invalidate(ctx context.Context, storeID string) {
	if s.Cache != nil {
		s.Cache.InvalidateRevenue(ctx, storeID)
	}
}

func toOrderItem(it SelectedItem) OrderItem {
	return OrderItem{ID: it.ID, OrderID: it.OrderID, ProductID: it.ProductID}
}

func toOrderItems(items Selection) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, toOrderItem(it))
	}
	return out
}
