package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// HireFilter selects hires of one product whose hire date lies in [From, To].
// ExcludeOrderID drops the hires of the order being edited.
type HireFilter struct {
	StoreID        string
	ProductID      string
	From, To       time.Time
	ExcludeOrderID string
}

// Queries is the persistence surface used by the reconciler. Every method
// runs either on the pool or inside the transaction passed by Store.InTx.
type Queries interface {
	StoreOwnedBy(ctx context.Context, storeID, userID string) (bool, error)

	ProductsByIDs(ctx context.Context, ids []string) ([]Product, error)
	ListProducts(ctx context.Context, storeID string) ([]Product, error)
	ProductDetails(ctx context.Context, ids []string) ([]ProductDetail, error)

	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, storeID, orderID string) (*Order, error)
	FindOrder(ctx context.Context, orderID string) (*Order, error)
	DeleteOrder(ctx context.Context, orderID string) (int64, error)
	ListOrders(ctx context.Context, storeID string) ([]Order, error)
	PaidOrdersBetween(ctx context.Context, storeID string, from, to time.Time) ([]Order, error)
	PaidRevenue(ctx context.Context, storeID string) (decimal.Decimal, error)
	MarkOrderPaid(ctx context.Context, orderID, address, phone, customerName string) error

	InsertOrderItem(ctx context.Context, it OrderItem) error
	OrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	TakenItemIDs(ctx context.Context, ids []string) ([]string, error)
	DeleteOrderItems(ctx context.Context, orderID string, ids []string) (int64, error)

	InsertHire(ctx context.Context, h *ProductHire) error
	UpdateHire(ctx context.Context, h ProductHire) error
	GetHire(ctx context.Context, storeID, hireID string) (*ProductHire, error)
	ListHires(ctx context.Context, storeID string) ([]ProductHire, error)
	OrderHires(ctx context.Context, orderID string) ([]ProductHire, error)
	DeleteHires(ctx context.Context, ids []string) (int64, error)
	DeleteOrderHires(ctx context.Context, orderID string) (int64, error)
	MarkOrderHiresPaid(ctx context.Context, orderID string) (int64, error)
	CountHires(ctx context.Context, f HireFilter) (int, error)

	RecordPaymentEvent(ctx context.Context, eventID, orderID string) (bool, error)
	EnqueueNotification(ctx context.Context, n *Notification) (bool, error)
}

// Store runs fn inside a single transaction; fn's error rolls everything back.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
}
