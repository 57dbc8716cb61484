package orders_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AydinMate/wedding-admin/internal/orders"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to orders.NotificationStatus
		ok       bool
	}{
		{orders.NotificationPending, orders.NotificationPublished, true},
		{orders.NotificationPublished, orders.NotificationSent, true},
		{orders.NotificationPublished, orders.NotificationFailed, true},
		{orders.NotificationFailed, orders.NotificationPublished, true},
		{orders.NotificationFailed, orders.NotificationSent, true},
		{orders.NotificationSent, orders.NotificationFailed, false},
		{orders.NotificationSent, orders.NotificationPublished, false},
		{orders.NotificationPublished, orders.NotificationPending, false},
		{"UNKNOWN", orders.NotificationSent, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, orders.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNotificationRelayable(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		status   orders.NotificationStatus
		age      time.Duration
		attempts int
		stale    time.Duration
		want     bool
	}{
		{"pending", orders.NotificationPending, 0, 0, 10 * time.Minute, true},
		{"failed", orders.NotificationFailed, 0, 2, 10 * time.Minute, true},
		{"failed out of attempts", orders.NotificationFailed, 0, 5, 10 * time.Minute, false},
		{"published in flight", orders.NotificationPublished, 5 * time.Minute, 0, 10 * time.Minute, false},
		{"published stale", orders.NotificationPublished, 11 * time.Minute, 0, 10 * time.Minute, true},
		{"published stale out of attempts", orders.NotificationPublished, time.Hour, 5, 10 * time.Minute, false},
		{"published, timeout off", orders.NotificationPublished, time.Hour, 0, 0, false},
		{"sent", orders.NotificationSent, time.Hour, 0, 10 * time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := orders.Notification{Status: tc.status, Attempts: tc.attempts, UpdatedAt: now.Add(-tc.age)}
			assert.Equal(t, tc.want, n.Relayable(now, 5, tc.stale))
		})
	}
}
