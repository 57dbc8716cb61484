package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type CheckoutItem struct {
	ProductID string `json:"productId"`
	HireDate  Date   `json:"hireDate"`
}

type CheckoutInput struct {
	StoreID        string
	Items          []CheckoutItem
	DropoffAddress string
	IsDelivery     bool
	HireDate       time.Time
}

type LineItem struct {
	Name       string
	UnitAmount int64 // minor currency units
	Quantity   int64
}

type SessionRequest struct {
	OrderID   string
	LineItems []LineItem
}

// PaymentGateway creates hosted payment sessions.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (string, error)
}

// Checkout persists a provisional unpaid order and hands the customer to the
// hosted payment page. The order id travels as session metadata.
type Checkout struct {
	Store    Store
	Payments PaymentGateway
	Now      func() time.Time
	NewID    func() string
}

func (c *Checkout) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Checkout) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

// Start returns the redirect URL of the payment session.
func (c *Checkout) Start(ctx context.Context, in CheckoutInput) (string, error) {
	if len(in.Items) == 0 {
		return "", invalid("product hires are required")
	}
	if in.StoreID == "" {
		return "", invalid("store id is required")
	}
	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" {
			return "", invalid("product id is required")
		}
		ids = append(ids, it.ProductID)
	}
	hireDate := in.HireDate
	if hireDate.IsZero() {
		hireDate = in.Items[0].HireDate.Time
	}
	if hireDate.IsZero() {
		return "", invalid("hire date is required")
	}

	now := c.now()
	order := &Order{
		ID:             c.newID(),
		StoreID:        in.StoreID,
		HireDate:       hireDate.UTC(),
		IsDelivery:     in.IsDelivery,
		DropoffAddress: in.DropoffAddress,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var lines []LineItem
	err := c.Store.InTx(ctx, func(q Queries) error {
		products, err := q.ProductsByIDs(ctx, uniq(ids))
		if err != nil {
			return errors.Wrap(err, "load products")
		}
		byID := make(map[string]Product, len(products))
		for _, p := range products {
			if p.StoreID == in.StoreID && !p.IsArchived {
				byID[p.ID] = p
			}
		}
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				return invalid("product " + id + " is not available")
			}
		}
		lines = lineItems(ids, byID)

		order.Price = SumPrices(products, ids)
		if err := q.InsertOrder(ctx, order); err != nil {
			return errors.Wrap(err, "insert order")
		}
		for _, it := range in.Items {
			item := OrderItem{ID: c.newID(), OrderID: order.ID, ProductID: it.ProductID}
			if err := q.InsertOrderItem(ctx, item); err != nil {
				return errors.Wrap(err, "insert order item")
			}
			date := it.HireDate.Time
			if date.IsZero() {
				date = order.HireDate
			}
			h := &ProductHire{
				ID:        c.newID(),
				StoreID:   in.StoreID,
				ProductID: it.ProductID,
				OrderID:   order.ID,
				HireDate:  date.UTC(),
				CreatedAt: now,
			}
			if err := q.InsertHire(ctx, h); err != nil {
				return errors.Wrap(err, "insert hire")
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	url, err := c.Payments.CreateCheckoutSession(ctx, SessionRequest{OrderID: order.ID, LineItems: lines})
	if err != nil {
		log.WithError(err).WithField("order_id", order.ID).Error("create checkout session")
		return "", errors.WithMessage(ErrExternalService, err.Error())
	}
	log.WithFields(log.Fields{"order_id": order.ID, "store_id": in.StoreID, "total": order.Price.StringFixed(2)}).Info("checkout session created")
	return url, nil
}

// lineItems produces one line per distinct product, in first-seen order, with
// the quantity it was selected.
func lineItems(ids []string, byID map[string]Product) []LineItem {
	qty := make(map[string]int64, len(ids))
	var order []string
	for _, id := range ids {
		if qty[id] == 0 {
			order = append(order, id)
		}
		qty[id]++
	}
	out := make([]LineItem, 0, len(order))
	for _, id := range order {
		p := byID[id]
		out = append(out, LineItem{Name: p.Name, UnitAmount: MinorUnits(p.Price), Quantity: qty[id]})
	}
	return out
}
