package orders

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ThisWeeksOrders lists the paid or cash orders hired this ISO week, earliest
// hire first, each with its products.
func (s *Service) ThisWeeksOrders(ctx context.Context, userID, storeID string) ([]WeekOrder, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return nil, err
	}
	from, to := WeekBounds(s.now())
	orders, err := s.Store.PaidOrdersBetween(ctx, storeID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "load week orders")
	}

	out := make([]WeekOrder, 0, len(orders))
	for _, o := range orders {
		items, err := s.Store.OrderItems(ctx, o.ID)
		if err != nil {
			return nil, errors.Wrap(err, "load order items")
		}
		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		products := []ProductDetail{}
		if len(ids) > 0 {
			if products, err = s.Store.ProductDetails(ctx, uniq(ids)); err != nil {
				return nil, errors.Wrap(err, "load order products")
			}
		}
		out = append(out, WeekOrder{Order: o, Products: products})
	}
	return out, nil
}

// TotalRevenue sums the price of every paid or cash order of the store.
func (s *Service) TotalRevenue(ctx context.Context, userID, storeID string) (decimal.Decimal, error) {
	if err := s.Authorize(ctx, userID, storeID); err != nil {
		return decimal.Zero, err
	}
	var version string
	if s.Cache != nil {
		v, ver, ok := s.Cache.GetRevenue(ctx, storeID)
		if ok {
			return v, nil
		}
		version = ver
	}
	v, err := s.Store.PaidRevenue(ctx, storeID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "sum revenue")
	}
	if s.Cache != nil {
		s.Cache.SetRevenue(ctx, storeID, v, version)
	}
	return v, nil
}
