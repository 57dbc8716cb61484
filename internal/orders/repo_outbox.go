package orders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const notificationColumns = `id, order_id, event_id, kind, recipient, customer_name, line1, line2, city, state,
	postal_code, country, status, attempts, last_error, created_at, updated_at, sent_at`

var ErrInvalidTransition = errors.New("invalid notification transition")

func (q queries) EnqueueNotification(ctx context.Context, n *Notification) (bool, error) {
	if n.Status == "" {
		n.Status = NotificationPending
	}
	ct, err := q.db.Exec(ctx, `
		INSERT INTO notification_outbox(id, order_id, event_id, kind, recipient, customer_name,
		                                line1, line2, city, state, postal_code, country, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
		ON CONFLICT (order_id, kind) DO NOTHING`,
		n.ID, n.OrderID, n.EventID, n.Kind, n.Recipient, n.CustomerName,
		n.Line1, n.Line2, n.City, n.State, n.PostalCode, n.Country, string(n.Status), n.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) GetNotification(ctx context.Context, id string) (*Notification, error) {
	n, err := scanNotification(r.DB.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notification_outbox WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("notification", id)
	}
	return n, err
}

// RelayOutbox locks up to limit relayable rows (see Notification.Relayable;
// SKIP LOCKED, so several relays can run side by side) and hands each to
// publish. Rows that were published are marked PUBLISHED, and republishing a
// stale PUBLISHED row counts as an attempt. The first publish error stops the
// batch and keeps the progress made so far.
func (r *Repo) RelayOutbox(ctx context.Context, limit, maxAttempts int, staleAfter time.Duration, publish func(context.Context, Notification) error) (int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+notificationColumns+` FROM notification_outbox
		WHERE attempts < $2
		  AND (status IN ('PENDING', 'FAILED')
		       OR ($3::float8 > 0 AND status = 'PUBLISHED'
		           AND updated_at < now() - make_interval(secs => $3::float8)))
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit, maxAttempts, staleAfter.Seconds())
	if err != nil {
		return 0, err
	}
	var batch []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			rows.Close()
			return 0, err
		}
		batch = append(batch, *n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sent := 0
	var publishErr error
	for _, n := range batch {
		if publishErr = publish(ctx, n); publishErr != nil {
			break
		}
		if _, err := tx.Exec(ctx, `
			UPDATE notification_outbox
			SET status='PUBLISHED', updated_at=now(),
			    attempts=attempts + CASE WHEN status='PUBLISHED' THEN 1 ELSE 0 END
			WHERE id=$1`, n.ID); err != nil {
			return 0, err
		}
		sent++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return sent, publishErr
}

// MarkNotification moves the row to status, counting failed attempts. Moves
// the status machine does not allow are rejected with ErrInvalidTransition.
func (r *Repo) MarkNotification(ctx context.Context, id string, to NotificationStatus, lastErr string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM notification_outbox WHERE id=$1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("notification", id)
	}
	if err != nil {
		return err
	}
	if !CanTransition(NotificationStatus(from), to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}

	failed := 0
	if to == NotificationFailed {
		failed = 1
	}
	if _, err := tx.Exec(ctx, `
		UPDATE notification_outbox
		SET status=$2, attempts=attempts+$3, last_error=$4, updated_at=now(),
		    sent_at=CASE WHEN $2='SENT' THEN now() ELSE sent_at END
		WHERE id=$1`, id, string(to), failed, lastErr); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var status string
	if err := row.Scan(&n.ID, &n.OrderID, &n.EventID, &n.Kind, &n.Recipient, &n.CustomerName,
		&n.Line1, &n.Line2, &n.City, &n.State, &n.PostalCode, &n.Country,
		&status, &n.Attempts, &n.LastError, &n.CreatedAt, &n.UpdatedAt, &n.SentAt); err != nil {
		return nil, err
	}
	n.Status = NotificationStatus(status)
	return &n, nil
}
