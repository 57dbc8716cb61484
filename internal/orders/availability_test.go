package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AydinMate/wedding-admin/internal/orders"
)

func TestDayBounds(t *testing.T) {
	from, to := orders.DayBounds(time.Date(2024, 6, 10, 18, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 6, 10, 23, 59, 59, int(999*time.Millisecond), time.UTC), to)

	// an offset timestamp is judged by its UTC calendar day
	from, _ = orders.DayBounds(time.Date(2024, 6, 11, 8, 0, 0, 0, time.FixedZone("AEST", 10*3600)))
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), from)
}

func TestWeekBounds(t *testing.T) {
	cases := map[string]time.Time{
		"monday":    time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		"wednesday": clock,
		"sunday":    time.Date(2024, 6, 16, 23, 59, 0, 0, time.UTC),
	}
	for name, now := range cases {
		t.Run(name, func(t *testing.T) {
			from, to := orders.WeekBounds(now)
			assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), from)
			assert.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), to)
		})
	}
}

func TestIsProductHiredOnDate(t *testing.T) {
	st := newStore()
	svc := newService(st)
	o := createAB(t, svc)
	ctx := context.Background()

	cases := []struct {
		name    string
		product string
		date    time.Time
		exclude string
		want    bool
	}{
		{"hired that day", "A", june10, "", true},
		{"late the same day", "A", june10.Add(23*time.Hour + 59*time.Minute), "", true},
		{"next day", "A", june10.AddDate(0, 0, 1), "", false},
		{"previous day", "B", june10.Add(-time.Millisecond), "", false},
		{"own order excluded", "A", june10, o.ID, false},
		{"other product", "C", june10, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := orders.IsProductHiredOnDate(ctx, st, storeID, tc.product, tc.date, tc.exclude)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIsProductHiredOnDateValidation(t *testing.T) {
	st := newStore()
	_, err := orders.IsProductHiredOnDate(context.Background(), st, storeID, "", june10, "")
	assert.True(t, errors.Is(err, orders.ErrValidation))
	_, err = orders.IsProductHiredOnDate(context.Background(), st, storeID, "A", time.Time{}, "")
	assert.True(t, errors.Is(err, orders.ErrValidation))
}

func TestAvailabilityRequiresOwner(t *testing.T) {
	st := newStore()
	svc := newService(st)
	createAB(t, svc)

	hired, err := svc.Availability(context.Background(), owner, storeID, "A", june10, "")
	require.NoError(t, err)
	assert.True(t, hired)

	_, err = svc.Availability(context.Background(), "", storeID, "A", june10, "")
	assert.True(t, errors.Is(err, orders.ErrUnauthenticated))
}
