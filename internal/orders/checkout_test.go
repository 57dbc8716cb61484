package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AydinMate/wedding-admin/internal/orders"
)

type fakeGateway struct {
	reqs []orders.SessionRequest
	err  error
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req orders.SessionRequest) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.reqs = append(g.reqs, req)
	return "https://pay.example.com/session/" + req.OrderID, nil
}

func newCheckout(st orders.Store, gw orders.PaymentGateway) *orders.Checkout {
	return &orders.Checkout{Store: st, Payments: gw, Now: func() time.Time { return clock }, NewID: seqIDs()}
}

func day(d int) orders.Date { return orders.Date{Time: time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)} }

func TestCheckoutStart(t *testing.T) {
	st := newStore()
	gw := &fakeGateway{}
	c := newCheckout(st, gw)

	url, err := c.Start(context.Background(), orders.CheckoutInput{
		StoreID: storeID,
		Items: []orders.CheckoutItem{
			{ProductID: "A", HireDate: day(10)},
			{ProductID: "B", HireDate: day(11)},
			{ProductID: "A", HireDate: day(12)},
		},
		IsDelivery:     true,
		DropoffAddress: "5 Chapel Rd, Bankstown",
		HireDate:       june10,
	})
	require.NoError(t, err)

	all := st.Orders()
	require.Len(t, all, 1)
	o := all[0]
	assert.Equal(t, "https://pay.example.com/session/"+o.ID, url)
	assert.False(t, o.IsPaid)
	assert.True(t, o.IsDelivery)
	assert.True(t, o.HireDate.Equal(june10))
	assert.True(t, o.Price.Equal(decimal.NewFromInt(130)), "price %s", o.Price)

	assert.Len(t, st.AllItems(), 3)
	hires := st.AllHires()
	require.Len(t, hires, 3)
	dates := map[string][]int{}
	for _, h := range hires {
		assert.Equal(t, o.ID, h.OrderID)
		assert.False(t, h.IsPaid)
		dates[h.ProductID] = append(dates[h.ProductID], h.HireDate.Day())
	}
	assert.ElementsMatch(t, []int{10, 12}, dates["A"], "per-pair dates are kept")
	assert.Equal(t, []int{11}, dates["B"])

	require.Len(t, gw.reqs, 1)
	req := gw.reqs[0]
	assert.Equal(t, o.ID, req.OrderID)
	assert.Equal(t, []orders.LineItem{
		{Name: "Floral Arch", UnitAmount: 5000, Quantity: 2},
		{Name: "Tiffany Chair", UnitAmount: 3000, Quantity: 1},
	}, req.LineItems)
}

func TestCheckoutOrderDateFallsBackToFirstItem(t *testing.T) {
	st := newStore()
	c := newCheckout(st, &fakeGateway{})

	_, err := c.Start(context.Background(), orders.CheckoutInput{
		StoreID: storeID,
		Items:   []orders.CheckoutItem{{ProductID: "B", HireDate: day(14)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 14, st.Orders()[0].HireDate.Day())
}

func TestCheckoutRejects(t *testing.T) {
	cases := map[string]orders.CheckoutInput{
		"no items":      {StoreID: storeID, HireDate: june10},
		"no store":      {Items: []orders.CheckoutItem{{ProductID: "A", HireDate: day(10)}}},
		"no product id": {StoreID: storeID, Items: []orders.CheckoutItem{{HireDate: day(10)}}},
		"no date":       {StoreID: storeID, Items: []orders.CheckoutItem{{ProductID: "A"}}},
		"archived":      {StoreID: storeID, HireDate: june10, Items: []orders.CheckoutItem{{ProductID: "C"}}},
		"other store":   {StoreID: storeID, HireDate: june10, Items: []orders.CheckoutItem{{ProductID: "D"}}},
		"unknown":       {StoreID: storeID, HireDate: june10, Items: []orders.CheckoutItem{{ProductID: "nope"}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			st := newStore()
			gw := &fakeGateway{}
			_, err := newCheckout(st, gw).Start(context.Background(), in)
			assert.True(t, errors.Is(err, orders.ErrValidation), "got %v", err)
			assert.Empty(t, st.Orders())
			assert.Empty(t, gw.reqs)
		})
	}
}

func TestCheckoutGatewayFailure(t *testing.T) {
	st := newStore()
	c := newCheckout(st, &fakeGateway{err: errors.New("stripe down")})

	_, err := c.Start(context.Background(), orders.CheckoutInput{
		StoreID: storeID, HireDate: june10,
		Items: []orders.CheckoutItem{{ProductID: "A"}},
	})
	assert.True(t, errors.Is(err, orders.ErrExternalService), "got %v", err)
	// the provisional order stays unpaid and is never confirmed
	require.Len(t, st.Orders(), 1)
	assert.False(t, st.Orders()[0].IsPaid)
}
