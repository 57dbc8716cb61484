package orders

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ResolveTotal sums the current price of every referenced product, once per
// occurrence in ids. Ids that do not resolve to a product are skipped.
func ResolveTotal(ctx context.Context, q Queries, ids []string) (decimal.Decimal, error) {
	if len(ids) == 0 {
		return decimal.Zero, nil
	}
	products, err := q.ProductsByIDs(ctx, uniq(ids))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "resolve total")
	}
	return SumPrices(products, ids), nil
}

// SumPrices is the pure half of ResolveTotal.
func SumPrices(products []Product, ids []string) decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}
	total := decimal.Zero
	for _, id := range ids {
		if price, ok := prices[id]; ok {
			total = total.Add(price)
		}
	}
	return total
}

// MinorUnits converts a price to integer cents, rounding half away from zero.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
