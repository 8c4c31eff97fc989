package items

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists items and stock alerts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	AlertStore
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	UpdateItem(ctx context.Context, item Item) error
	SetStock(ctx context.Context, id int64, stock int) error
	DeleteItem(ctx context.Context, id int64) error
	ExpiryCandidates(ctx context.Context, today time.Time) ([]Item, error)
	NotifyRole(ctx context.Context, role, title, message, link string) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const itemColumns = `item_id, item_code, item_name, category_id, brand, uom, unit_cost,
selling_price, stock_quantity, threshold_quantity, expiry_date, supplier_id,
created_at, updated_at`

// GetItem fetches one item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE item_id = $1`, id)
	return scanItem(row)
}

// ListItems lists items, newest first.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM items
WHERE ($1 = 0 OR supplier_id = $1)
  AND ($2 = '' OR item_name ILIKE '%' || $2 || '%' OR item_code ILIKE '%' || $2 || '%')
ORDER BY item_id DESC
LIMIT $3 OFFSET $4`, filter.SupplierID, filter.Search, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListOpenAlerts lists unresolved alerts, newest first.
func (r *Repository) ListOpenAlerts(ctx context.Context) ([]StockAlert, error) {
	rows, err := r.pool.Query(ctx, `SELECT alert_id, item_id, alert_type, resolved, created_at
FROM stock_alerts WHERE resolved = FALSE ORDER BY alert_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []StockAlert
	for rows.Next() {
		var a StockAlert
		if err := rows.Scan(&a.ID, &a.ItemID, &a.Type, &a.Resolved, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *txRepo) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE item_id = $1 FOR UPDATE`, id)
	return scanItem(row)
}

func (r *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO items
(item_code, item_name, category_id, brand, uom, unit_cost, selling_price,
 stock_quantity, threshold_quantity, expiry_date, supplier_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING item_id`,
		item.Code, item.Name, item.CategoryID, item.Brand, item.UOM,
		item.UnitCost, item.SellingPrice, item.Stock, item.Threshold,
		item.ExpiryDate, item.SupplierID).Scan(&id)
	if err != nil {
		return 0, mapItemError(err)
	}
	return id, nil
}

func (r *txRepo) UpdateItem(ctx context.Context, item Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE items SET
item_code = $2, item_name = $3, category_id = $4, brand = $5, uom = $6,
unit_cost = $7, selling_price = $8, stock_quantity = $9,
threshold_quantity = $10, expiry_date = $11, supplier_id = $12,
updated_at = NOW()
WHERE item_id = $1`,
		item.ID, item.Code, item.Name, item.CategoryID, item.Brand, item.UOM,
		item.UnitCost, item.SellingPrice, item.Stock, item.Threshold,
		item.ExpiryDate, item.SupplierID)
	if err != nil {
		return mapItemError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) SetStock(ctx context.Context, id int64, stock int) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE items SET stock_quantity = $2, updated_at = NOW() WHERE item_id = $1`, id, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM items WHERE item_id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) OpenAlertExists(ctx context.Context, itemID int64, alertType AlertType) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM stock_alerts WHERE item_id = $1 AND alert_type = $2 AND resolved = FALSE)`,
		itemID, alertType).Scan(&exists)
	return exists, err
}

func (r *txRepo) ResolveAlerts(ctx context.Context, itemID int64, types ...AlertType) error {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	_, err := r.tx.Exec(ctx, `UPDATE stock_alerts SET resolved = TRUE
WHERE item_id = $1 AND resolved = FALSE AND alert_type = ANY($2)`, itemID, names)
	return err
}

func (r *txRepo) CreateAlert(ctx context.Context, itemID int64, alertType AlertType) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO stock_alerts (item_id, alert_type, resolved) VALUES ($1, $2, FALSE)`,
		itemID, alertType)
	return err
}

func (r *txRepo) ExpiryCandidates(ctx context.Context, today time.Time) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM items i
WHERE i.expiry_date IS NOT NULL
  AND i.expiry_date <= $1
  AND i.stock_quantity > 0
  AND NOT EXISTS (
    SELECT 1 FROM stock_alerts sa
    WHERE sa.item_id = i.item_id AND sa.alert_type = $2 AND sa.resolved = FALSE)
ORDER BY i.item_id`, today, AlertExpired)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepo) NotifyRole(ctx context.Context, role, title, message, link string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO notifications (user_id, title, message, link)
SELECT user_id, $2, $3, $4 FROM users WHERE role = $1 AND active = TRUE`,
		role, title, message, link)
	return err
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Code, &item.Name, &item.CategoryID, &item.Brand,
		&item.UOM, &item.UnitCost, &item.SellingPrice, &item.Stock, &item.Threshold,
		&item.ExpiryDate, &item.SupplierID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func mapItemError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}
