package orders_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AydinMate/wedding-admin/internal/orders"
	"github.com/AydinMate/wedding-admin/internal/orders/orderstest"
)

const (
	storeID = "store-1"
	owner   = "user_1"
)

var (
	june10 = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	clock  = time.Date(2024, 6, 12, 15, 4, 5, 0, time.UTC) // a Wednesday
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func product(id, store, name, price string) orders.Product {
	return orders.Product{ID: id, StoreID: store, Name: name, Price: decimal.RequireFromString(price)}
}

func newStore() *orderstest.Store {
	st := orderstest.NewStore()
	st.AddStore(storeID, owner)
	st.AddStore("store-2", "user_2")
	st.AddProduct(product("A", storeID, "Floral Arch", "50"), "White", "Large", "https://img/a.jpg")
	st.AddProduct(product("B", storeID, "Tiffany Chair", "30"), "Gold", "Standard", "")
	archived := product("C", storeID, "Old Arbour", "20")
	archived.IsArchived = true
	st.AddProduct(archived, "", "", "")
	st.AddProduct(product("D", "store-2", "Other Store Arch", "10"), "", "", "")
	return st
}

type memCache struct {
	vals        map[string]decimal.Decimal
	versions    map[string]int
	invalidated []string

	// afterGet runs between the cache read and the database read.
	afterGet func()
}

func newMemCache() *memCache {
	return &memCache{vals: map[string]decimal.Decimal{}, versions: map[string]int{}}
}

func (c *memCache) GetRevenue(_ context.Context, storeID string) (decimal.Decimal, string, bool) {
	v, ok := c.vals[storeID]
	ver := strconv.Itoa(c.versions[storeID])
	if c.afterGet != nil {
		c.afterGet()
	}
	return v, ver, ok
}

func (c *memCache) SetRevenue(_ context.Context, storeID string, v decimal.Decimal, version string) {
	if version != strconv.Itoa(c.versions[storeID]) {
		return
	}
	c.vals[storeID] = v
}

func (c *memCache) InvalidateRevenue(_ context.Context, storeID string) {
	c.versions[storeID]++
	delete(c.vals, storeID)
	c.invalidated = append(c.invalidated, storeID)
}

func newService(st *orderstest.Store) *orders.Service {
	return &orders.Service{
		Store: st,
		Now:   func() time.Time { return clock },
		NewID: seqIDs(),
	}
}

func selection(productIDs ...string) orders.Selection {
	out := make(orders.Selection, 0, len(productIDs))
	for i, pid := range productIDs {
		out = append(out, orders.SelectedItem{ID: fmt.Sprintf("item-%d", i+1), ProductID: pid})
	}
	return out
}

func itemProducts(items []orders.OrderItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ProductID)
	}
	sort.Strings(out)
	return out
}

func hireProducts(hires []orders.ProductHire) []string {
	out := make([]string, 0, len(hires))
	for _, h := range hires {
		out = append(out, h.ProductID)
	}
	sort.Strings(out)
	return out
}
