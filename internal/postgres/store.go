package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/orders"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// Store implements orders.Store on Postgres. Row locks (SELECT ... FOR
// UPDATE) and conditional updates do the concurrency work; there is no
// in-process locking.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

const productCols = `id, sku, name, price_cents, stock, low_stock_threshold, created_at, updated_at`

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Stock, &p.LowStockThreshold, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, orders.ErrProductNotFound
	}
	return p, err
}

func (t *pgTx) GetProduct(ctx context.Context, id string) (orders.Product, error) {
	return scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
}

func (t *pgTx) LockProduct(ctx context.Context, id string) (orders.Product, error) {
	return scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) queryProducts(ctx context.Context, sql string, args ...any) ([]orders.Product, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) ListProducts(ctx context.Context) ([]orders.Product, error) {
	return t.queryProducts(ctx, `SELECT `+productCols+` FROM products ORDER BY sku`)
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return orders.ErrProductNotFound
	}
	return orders.ErrInsufficientStock
}

func (t *pgTx) Recommend(ctx context.Context, productIDs []string, limit int) ([]orders.Product, error) {
	return t.queryProducts(ctx, `
		SELECT p.id, p.sku, p.name, p.price_cents, p.stock, p.low_stock_threshold, p.created_at, p.updated_at
		FROM order_items seed
		JOIN order_items other ON other.order_id = seed.order_id AND NOT (other.product_id = ANY($1))
		JOIN products p ON p.id = other.product_id
		WHERE seed.product_id = ANY($1)
		GROUP BY p.id
		ORDER BY COUNT(DISTINCT other.order_id) DESC, p.id
		LIMIT $2`, productIDs, limit)
}

func (t *pgTx) CartLines(ctx context.Context, accountID string) ([]orders.CartLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT account_id, product_id, qty, reserved_until
		FROM cart_items WHERE account_id = $1 ORDER BY product_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []orders.CartLine
	for rows.Next() {
		var l orders.CartLine
		if err := rows.Scan(&l.AccountID, &l.ProductID, &l.Qty, &l.ReservedUntil); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) UpsertCartLine(ctx context.Context, l orders.CartLine) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO cart_items (account_id, product_id, qty, reserved_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, product_id)
		DO UPDATE SET qty = EXCLUDED.qty, reserved_until = EXCLUDED.reserved_until`,
		l.AccountID, l.ProductID, l.Qty, l.ReservedUntil)
	if isPgCode(err, pgForeignKeyViolation) {
		return orders.ErrProductNotFound
	}
	return err
}

func (t *pgTx) DeleteCartLine(ctx context.Context, accountID, productID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE account_id = $1 AND product_id = $2`, accountID, productID)
	return err
}

func (t *pgTx) ClearCart(ctx context.Context, accountID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE account_id = $1`, accountID)
	return err
}

func (t *pgTx) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, status_history, total_cents, is_milestone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, string(o.Status), statusStrings(o.StatusHistory), o.TotalCents, o.IsMilestone, o.CreatedAt, o.UpdatedAt)
	if isPgCode(err, pgUniqueViolation) {
		return fmt.Errorf("order %s already exists: %w", o.ID, err)
	}
	return err
}

func (t *pgTx) InsertOrderItem(ctx context.Context, it orders.OrderItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, name, qty, price_cents)
		VALUES ($1, $2, $3, $4, $5)`, it.OrderID, it.ProductID, it.Name, it.Qty, it.PriceCents)
	if isPgCode(err, pgForeignKeyViolation) {
		return fmt.Errorf("order item %s/%s: %w", it.OrderID, it.ProductID, orders.ErrProductNotFound)
	}
	return err
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return t.readOrder(ctx, id, false)
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return t.readOrder(ctx, id, true)
}

func (t *pgTx) readOrder(ctx context.Context, id string, lock bool) (orders.Order, error) {
	q := `
		SELECT id, user_id, status, status_history, total_cents, is_milestone, created_at, updated_at
		FROM orders WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	var (
		o       orders.Order
		status  string
		history []string
	)
	err := t.tx.QueryRow(ctx, q, id).Scan(&o.ID, &o.UserID, &status, &history, &o.TotalCents, &o.IsMilestone, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, orders.ErrOrderNotFound
	}
	if err != nil {
		return o, err
	}
	o.Status = orders.Status(status)
	for _, h := range history {
		o.StatusHistory = append(o.StatusHistory, orders.Status(h))
	}

	rows, err := t.tx.Query(ctx, `
		SELECT order_id, product_id, name, qty, price_cents
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, id)
	if err != nil {
		return o, err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Name, &it.Qty, &it.PriceCents); err != nil {
			return o, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (t *pgTx) UpdateOrder(ctx context.Context, o orders.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET status = $2, status_history = $3, is_milestone = $4, updated_at = $5
		WHERE id = $1`, o.ID, string(o.Status), statusStrings(o.StatusHistory), o.IsMilestone, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) DeleteAwaitingOrders(ctx context.Context, accountID string) (int, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE user_id = $1 AND status = $2`,
		accountID, string(orders.StatusAwaitingPayment))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CountOrders first takes a transaction-scoped advisory lock so that two
// finalizations running side by side cannot both claim the same ordinal.
//
// Lock order for every finalizing transaction: order row, product rows by
// product id, then this advisory lock. Callers must not lock a product after
// counting.
func (t *pgTx) CountOrders(ctx context.Context, statuses []orders.Status) (int, error) {
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('storefront.order_ordinal'))`); err != nil {
		return 0, err
	}
	var n int
	err := t.tx.QueryRow(ctx, `SELECT count(*) FROM orders WHERE status = ANY($1)`, statusStrings(statuses)).Scan(&n)
	return n, err
}

func (t *pgTx) Milestones(ctx context.Context) ([]int, error) {
	rows, err := t.tx.Query(ctx, `SELECT threshold FROM milestones ORDER BY threshold`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func (t *pgTx) AccountEmail(ctx context.Context, accountID string) (string, error) {
	var email string
	err := t.tx.QueryRow(ctx, `SELECT email FROM accounts WHERE id = $1`, accountID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", orders.ErrAccountNotFound
	}
	return email, err
}

func statusStrings(ss []orders.Status) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
