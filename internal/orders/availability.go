package orders

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DayBounds returns the closed interval [00:00:00.000, 23:59:59.999] of t's
// calendar day in UTC.
func DayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Millisecond)
}

// WeekBounds returns the half-open ISO week [Monday 00:00, next Monday 00:00) containing t, in UTC.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	start, _ := DayBounds(t)
	offset := (int(start.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// IsProductHiredOnDate asks the store for an existing hire of the product on that day.
func IsProductHiredOnDate(ctx context.Context, q Queries, storeID, productID string, date time.Time, excludeOrderID string) (bool, error) {
	if productID == "" {
		return false, invalid("product id is required")
	}
	if date.IsZero() {
		return false, invalid("date is required")
	}
	from, to := DayBounds(date)
	n, err := q.CountHires(ctx, HireFilter{
		StoreID:        storeID,
		ProductID:      productID,
		From:           from,
		To:             to,
		ExcludeOrderID: excludeOrderID,
	})
	if err != nil {
		return false, errors.Wrap(err, "count hires")
	}
	return n > 0, nil
}
