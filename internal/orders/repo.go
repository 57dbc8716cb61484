package orders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the Postgres implementation of Store.
type Repo struct {
	queries
	DB *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{queries: queries{db: db}, DB: db}
}

func (r *Repo) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(queries{db: tx}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

type queries struct{ db dbtx }

const orderColumns = `id, store_id, is_paid, is_cash, hire_date, is_delivery, dropoff_address,
	customer_name, address, phone, price::text, created_at, updated_at`

const hireColumns = `id, store_id, product_id, COALESCE(order_id, ''), hire_date, is_paid, is_cash, created_at`

func (q queries) StoreOwnedBy(ctx context.Context, storeID, userID string) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM stores WHERE id=$1 AND user_id=$2)`, storeID, userID).Scan(&ok)
	return ok, err
}

func (q queries) ProductsByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return q.products(ctx, `SELECT id, store_id, COALESCE(category_id, ''), COALESCE(colour_id, ''), COALESCE(size_id, ''),
		name, price::text, is_archived, created_at
		FROM products WHERE id = ANY($1)`, ids)
}

func (q queries) ListProducts(ctx context.Context, storeID string) ([]Product, error) {
	return q.products(ctx, `SELECT id, store_id, COALESCE(category_id, ''), COALESCE(colour_id, ''), COALESCE(size_id, ''),
		name, price::text, is_archived, created_at
		FROM products WHERE store_id=$1 AND NOT is_archived ORDER BY name`, storeID)
}

func (q queries) products(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		var price string
		if err := rows.Scan(&p.ID, &p.StoreID, &p.CategoryID, &p.ColourID, &p.SizeID,
			&p.Name, &price, &p.IsArchived, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrapf(err, "product %s price", p.ID)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q queries) ProductDetails(ctx context.Context, ids []string) ([]ProductDetail, error) {
	rows, err := q.db.Query(ctx, `
		SELECT p.id, p.store_id, p.name, COALESCE(c.name, ''), COALESCE(s.name, ''), p.price::text,
		       COALESCE((SELECT i.url FROM images i WHERE i.product_id = p.id ORDER BY i.created_at LIMIT 1), '')
		FROM products p
		LEFT JOIN colours c ON c.id = p.colour_id
		LEFT JOIN sizes s ON s.id = p.size_id
		WHERE p.id = ANY($1)
		ORDER BY p.name`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ProductDetail{}
	for rows.Next() {
		var d ProductDetail
		var price string
		if err := rows.Scan(&d.ID, &d.StoreID, &d.Name, &d.Colour, &d.Size, &price, &d.ImageURL); err != nil {
			return nil, err
		}
		if d.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrapf(err, "product %s price", d.ID)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (q queries) InsertOrder(ctx context.Context, o *Order) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO orders(id, store_id, is_paid, is_cash, hire_date, is_delivery, dropoff_address,
		                   customer_name, address, phone, price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11::text::numeric,$12,$13)`,
		o.ID, o.StoreID, o.IsPaid, o.IsCash, o.HireDate, o.IsDelivery, o.DropoffAddress,
		o.CustomerName, o.Address, o.Phone, o.Price.String(), o.CreatedAt, o.UpdatedAt)
	return err
}

func (q queries) UpdateOrder(ctx context.Context, o *Order) error {
	ct, err := q.db.Exec(ctx, `
		UPDATE orders SET is_paid=$2, is_delivery=$3, is_cash=$4, hire_date=$5, dropoff_address=$6,
		                  customer_name=$7, price=$8::text::numeric, updated_at=$9
		WHERE id=$1`,
		o.ID, o.IsPaid, o.IsDelivery, o.IsCash, o.HireDate, o.DropoffAddress,
		o.CustomerName, o.Price.String(), o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return notFound("order", o.ID)
	}
	return nil
}

func (q queries) GetOrder(ctx context.Context, storeID, orderID string) (*Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 AND store_id=$2`, orderID, storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("order", orderID)
	}
	return o, err
}

func (q queries) FindOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("order", orderID)
	}
	return o, err
}

func (q queries) DeleteOrder(ctx context.Context, orderID string) (int64, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (q queries) ListOrders(ctx context.Context, storeID string) ([]Order, error) {
	return q.orders(ctx, `SELECT `+orderColumns+` FROM orders WHERE store_id=$1 ORDER BY created_at DESC`, storeID)
}

func (q queries) PaidOrdersBetween(ctx context.Context, storeID string, from, to time.Time) ([]Order, error) {
	return q.orders(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE store_id=$1 AND hire_date >= $2 AND hire_date < $3 AND (is_paid OR is_cash)
		ORDER BY hire_date ASC`, storeID, from, to)
}

func (q queries) PaidRevenue(ctx context.Context, storeID string) (decimal.Decimal, error) {
	var sum string
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(price), 0)::text FROM orders WHERE store_id=$1 AND (is_paid OR is_cash)`, storeID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(sum)
}

func (q queries) MarkOrderPaid(ctx context.Context, orderID, address, phone, customerName string) error {
	ct, err := q.db.Exec(ctx, `
		UPDATE orders SET is_paid=true, address=$2, phone=$3, customer_name=$4, updated_at=now()
		WHERE id=$1`, orderID, address, phone, customerName)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return notFound("order", orderID)
	}
	return nil
}

func (q queries) orders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var price string
	if err := row.Scan(&o.ID, &o.StoreID, &o.IsPaid, &o.IsCash, &o.HireDate, &o.IsDelivery, &o.DropoffAddress,
		&o.CustomerName, &o.Address, &o.Phone, &price, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if o.Price, err = decimal.NewFromString(price); err != nil {
		return nil, errors.Wrapf(err, "order %s price", o.ID)
	}
	return &o, nil
}

func (q queries) InsertOrderItem(ctx context.Context, it OrderItem) error {
	_, err := q.db.Exec(ctx, `INSERT INTO order_items(id, order_id, product_id) VALUES ($1,$2,$3)`,
		it.ID, it.OrderID, it.ProductID)
	return err
}

func (q queries) OrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `SELECT id, order_id, product_id FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// TakenItemIDs returns the subset of ids already used by any order item.
func (q queries) TakenItemIDs(ctx context.Context, ids []string) ([]string, error) {
	rows, err := q.db.Query(ctx, `SELECT id FROM order_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteOrderItems deletes the listed items of the order, or all of them when ids is nil.
func (q queries) DeleteOrderItems(ctx context.Context, orderID string, ids []string) (int64, error) {
	var (
		ct  pgconn.CommandTag
		err error
	)
	if ids == nil {
		ct, err = q.db.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID)
	} else {
		ct, err = q.db.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1 AND id = ANY($2)`, orderID, ids)
	}
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (q queries) InsertHire(ctx context.Context, h *ProductHire) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO product_hires(id, store_id, product_id, order_id, hire_date, is_paid, is_cash, created_at)
		VALUES ($1,$2,$3,NULLIF($4, ''),$5,$6,$7,$8)`,
		h.ID, h.StoreID, h.ProductID, h.OrderID, h.HireDate, h.IsPaid, h.IsCash, h.CreatedAt)
	return err
}

func (q queries) UpdateHire(ctx context.Context, h ProductHire) error {
	_, err := q.db.Exec(ctx, `UPDATE product_hires SET hire_date=$2, is_paid=$3, is_cash=$4 WHERE id=$1`,
		h.ID, h.HireDate, h.IsPaid, h.IsCash)
	return err
}

func (q queries) GetHire(ctx context.Context, storeID, hireID string) (*ProductHire, error) {
	var h ProductHire
	err := q.db.QueryRow(ctx, `SELECT `+hireColumns+` FROM product_hires WHERE id=$1 AND store_id=$2`, hireID, storeID).
		Scan(&h.ID, &h.StoreID, &h.ProductID, &h.OrderID, &h.HireDate, &h.IsPaid, &h.IsCash, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("hire", hireID)
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (q queries) ListHires(ctx context.Context, storeID string) ([]ProductHire, error) {
	rows, err := q.db.Query(ctx, `
		SELECT h.id, h.store_id, h.product_id, COALESCE(h.order_id, ''), h.hire_date, h.is_paid, h.is_cash, h.created_at,
		       p.name, p.price::text, p.is_archived
		FROM product_hires h
		JOIN products p ON p.id = h.product_id
		WHERE h.store_id=$1
		ORDER BY h.created_at DESC`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ProductHire{}
	for rows.Next() {
		var h ProductHire
		p := &Product{}
		var price string
		if err := rows.Scan(&h.ID, &h.StoreID, &h.ProductID, &h.OrderID, &h.HireDate, &h.IsPaid, &h.IsCash, &h.CreatedAt,
			&p.Name, &price, &p.IsArchived); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrapf(err, "product %s price", h.ProductID)
		}
		p.ID, p.StoreID = h.ProductID, h.StoreID
		h.Product = p
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q queries) OrderHires(ctx context.Context, orderID string) ([]ProductHire, error) {
	rows, err := q.db.Query(ctx, `SELECT `+hireColumns+` FROM product_hires WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductHire
	for rows.Next() {
		var h ProductHire
		if err := rows.Scan(&h.ID, &h.StoreID, &h.ProductID, &h.OrderID, &h.HireDate, &h.IsPaid, &h.IsCash, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (q queries) DeleteHires(ctx context.Context, ids []string) (int64, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM product_hires WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (q queries) DeleteOrderHires(ctx context.Context, orderID string) (int64, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM product_hires WHERE order_id=$1`, orderID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (q queries) MarkOrderHiresPaid(ctx context.Context, orderID string) (int64, error) {
	ct, err := q.db.Exec(ctx, `UPDATE product_hires SET is_paid=true WHERE order_id=$1`, orderID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// CountHires is served by the (product_id, hire_date) index.
func (q queries) CountHires(ctx context.Context, f HireFilter) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM product_hires
		WHERE product_id=$1 AND hire_date BETWEEN $2 AND $3
		  AND ($4::text = '' OR store_id = $4)
		  AND ($5::text = '' OR order_id IS DISTINCT FROM $5)`,
		f.ProductID, f.From, f.To, f.StoreID, f.ExcludeOrderID).Scan(&n)
	return n, err
}

func (q queries) RecordPaymentEvent(ctx context.Context, eventID, orderID string) (bool, error) {
	ct, err := q.db.Exec(ctx, `
		INSERT INTO payment_events(event_id, order_id) VALUES ($1,$2)
		ON CONFLICT (event_id) DO NOTHING`, eventID, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
