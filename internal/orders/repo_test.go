package orders_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AydinMate/wedding-admin/internal/orders"
	"github.com/AydinMate/wedding-admin/internal/postgres"
)

// pgRepo connects to the database named by POSTGRES_TEST_DSN and applies the
// migrations. Tests that need it are skipped when the variable is unset.
func pgRepo(t *testing.T) *orders.Repo {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	require.NoError(t, postgres.Migrate(dsn))
	pool, err := postgres.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return orders.NewRepo(pool)
}

type pgFixture struct {
	store, product, order string
}

// pgSeed inserts a store with one product and one unpaid order, all under fresh ids.
func pgSeed(t *testing.T, db *pgxpool.Pool) pgFixture {
	t.Helper()
	ctx := context.Background()
	f := pgFixture{store: "st-" + uuid.NewString(), product: "pr-" + uuid.NewString(), order: "or-" + uuid.NewString()}
	_, err := db.Exec(ctx, `INSERT INTO stores(id, user_id, name) VALUES ($1, 'user_1', 'Test hire')`, f.store)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO products(id, store_id, name, price) VALUES ($1, $2, 'Arch', 50)`, f.product, f.store)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO orders(id, store_id, hire_date) VALUES ($1, $2, $3)`, f.order, f.store, june10)
	require.NoError(t, err)
	return f
}

func pgNotification(t *testing.T, repo *orders.Repo) string {
	t.Helper()
	n := &orders.Notification{
		ID: "nt-" + uuid.NewString(), OrderID: "or-" + uuid.NewString(), EventID: "evt_" + uuid.NewString(),
		Kind: orders.KindReceipt, Recipient: "jane@example.com", CreatedAt: time.Now().UTC(),
	}
	fresh, err := repo.EnqueueNotification(context.Background(), n)
	require.NoError(t, err)
	require.True(t, fresh)
	return n.ID
}

func TestRepoCountHiresIncludesStandaloneHires(t *testing.T) {
	repo := pgRepo(t)
	f := pgSeed(t, repo.DB)
	ctx := context.Background()

	for _, h := range []orders.ProductHire{
		{ID: "hi-" + uuid.NewString(), StoreID: f.store, ProductID: f.product, OrderID: f.order, HireDate: june10},
		{ID: "hi-" + uuid.NewString(), StoreID: f.store, ProductID: f.product, HireDate: june10},
	} {
		h.CreatedAt = time.Now().UTC()
		require.NoError(t, repo.InsertHire(ctx, &h))
	}

	filter := orders.HireFilter{StoreID: f.store, ProductID: f.product, From: june10, To: june10.Add(24*time.Hour - time.Nanosecond)}
	n, err := repo.CountHires(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	filter.ExcludeOrderID = f.order
	n, err = repo.CountHires(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a hire without an order is never excluded")

	filter.From, filter.To = june10.Add(24*time.Hour), june10.Add(48*time.Hour)
	n, err = repo.CountHires(ctx, filter)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepoTakenItemIDs(t *testing.T) {
	repo := pgRepo(t)
	f := pgSeed(t, repo.DB)
	ctx := context.Background()

	used := "it-" + uuid.NewString()
	require.NoError(t, repo.InsertOrderItem(ctx, orders.OrderItem{ID: used, OrderID: f.order, ProductID: f.product}))

	taken, err := repo.TakenItemIDs(ctx, []string{used, "it-" + uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, []string{used}, taken)
}

func TestRepoRelayOutboxSkipsLockedRows(t *testing.T) {
	repo := pgRepo(t)
	ctx := context.Background()
	a, b := pgNotification(t, repo), pgNotification(t, repo)

	var first, second []string
	_, err := repo.RelayOutbox(ctx, 1000, 5, 0, func(ctx context.Context, n orders.Notification) error {
		if len(first) == 0 {
			// Rows locked by this batch stay invisible to a second relay.
			_, err := repo.RelayOutbox(ctx, 1000, 5, 0, func(_ context.Context, n orders.Notification) error {
				second = append(second, n.ID)
				return nil
			})
			require.NoError(t, err)
		}
		first = append(first, n.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, first, a)
	assert.Contains(t, first, b)
	assert.NotContains(t, second, a)
	assert.NotContains(t, second, b)

	n, err := repo.GetNotification(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, orders.NotificationPublished, n.Status)
	assert.Zero(t, n.Attempts)
}

func TestRepoRelayOutboxRepublishesStaleRows(t *testing.T) {
	repo := pgRepo(t)
	ctx := context.Background()
	stale, fresh := pgNotification(t, repo), pgNotification(t, repo)

	_, err := repo.DB.Exec(ctx, `UPDATE notification_outbox SET status='PUBLISHED', updated_at=now() - interval '20 minutes' WHERE id=$1`, stale)
	require.NoError(t, err)
	_, err = repo.DB.Exec(ctx, `UPDATE notification_outbox SET status='PUBLISHED', updated_at=now() WHERE id=$1`, fresh)
	require.NoError(t, err)

	var got []string
	_, err = repo.RelayOutbox(ctx, 1000, 5, 10*time.Minute, func(_ context.Context, n orders.Notification) error {
		got = append(got, n.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, got, stale)
	assert.NotContains(t, got, fresh)

	n, err := repo.GetNotification(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, orders.NotificationPublished, n.Status)
	assert.Equal(t, 1, n.Attempts)
	assert.WithinDuration(t, time.Now(), n.UpdatedAt, time.Minute)
}

func TestRepoMarkNotificationGuardsTransitions(t *testing.T) {
	repo := pgRepo(t)
	ctx := context.Background()
	id := pgNotification(t, repo)

	require.NoError(t, repo.MarkNotification(ctx, id, orders.NotificationFailed, "smtp timeout"))
	n, err := repo.GetNotification(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Attempts)
	assert.Equal(t, "smtp timeout", n.LastError)

	require.NoError(t, repo.MarkNotification(ctx, id, orders.NotificationSent, ""))
	n, err = repo.GetNotification(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orders.NotificationSent, n.Status)
	require.NotNil(t, n.SentAt)

	err = repo.MarkNotification(ctx, id, orders.NotificationFailed, "late failure")
	assert.True(t, errors.Is(err, orders.ErrInvalidTransition), "got %v", err)

	err = repo.MarkNotification(ctx, "nt-"+uuid.NewString(), orders.NotificationSent, "")
	assert.True(t, errors.Is(err, orders.ErrNotFound), "got %v", err)
}
