package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string          `json:"id"`
	StoreID    string          `json:"storeId"`
	CategoryID string          `json:"categoryId"`
	ColourID   string          `json:"colourId"`
	SizeID     string          `json:"sizeId"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	IsArchived bool            `json:"isArchived"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ProductDetail is a product joined with its colour, size and first image,
// as shown on receipts and the weekly view.
type ProductDetail struct {
	ID       string          `json:"id"`
	StoreID  string          `json:"storeId"`
	Name     string          `json:"name"`
	Colour   string          `json:"colour"`
	Size     string          `json:"size"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image,omitempty"`
}

type Order struct {
	ID             string          `json:"id"`
	StoreID        string          `json:"storeId"`
	IsPaid         bool            `json:"isPaid"`
	IsCash         bool            `json:"isCash"`
	HireDate       time.Time       `json:"hireDate"`
	IsDelivery     bool            `json:"isDelivery"`
	DropoffAddress string          `json:"dropoffAddress"`
	CustomerName   string          `json:"customerName"`
	Address        string          `json:"address"`
	Phone          string          `json:"phone"`
	Price          decimal.Decimal `json:"price"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`

	Items []OrderItem `json:"orderItems,omitempty"`
}

type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
}

type ProductHire struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"storeId"`
	ProductID string    `json:"productId"`
	OrderID   string    `json:"orderId"`
	HireDate  time.Time `json:"hireDate"`
	IsPaid    bool      `json:"isPaid"`
	IsCash    bool      `json:"isCash"`
	CreatedAt time.Time `json:"createdAt"`

	Product *Product `json:"product,omitempty"`
}

// WeekOrder is an order of the current week with its resolved products.
type WeekOrder struct {
	Order
	Products []ProductDetail `json:"products"`
}

// DropoffParts splits a delivery dropoff address into its comma-delimited components.
func (o Order) DropoffParts() []string {
	return splitAddress(o.DropoffAddress)
}
