package procurement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/procura-ims/procura/internal/items"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// It embeds items.AlertStore so the alert reconciliation that follows a
// completion stock posting runs inside the same transaction.
type TxRepository interface {
	items.AlertStore
	GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertPO(ctx context.Context, po PurchaseOrder) (int64, error)
	ReplacePOLines(ctx context.Context, poID int64, lines []POLine) error
	GetPOLines(ctx context.Context, poID int64) ([]POLine, error)
	UpdateStatusCAS(ctx context.Context, poID int64, from, to Status) (bool, error)
	SetExpectedDate(ctx context.Context, poID int64, date time.Time) error
	SetReceiveDateIfUnset(ctx context.Context, poID int64, date time.Time) error
	SetCompletion(ctx context.Context, poID int64, approverID int64, date time.Time) error
	DeletePO(ctx context.Context, poID int64) error
	GetReceiptByPO(ctx context.Context, poID int64) (GoodsReceipt, []GoodsReceiptLine, error)
	InsertReceipt(ctx context.Context, receipt GoodsReceipt) (int64, error)
	InsertReceiptLine(ctx context.Context, line GoodsReceiptLine) error
	SupplierCompanyName(ctx context.Context, supplierID int64) (string, error)
	AddItemStock(ctx context.Context, itemID int64, qty int) (items.Item, error)
	MarkDelayed(ctx context.Context, today time.Time) (int64, error)
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

const poColumns = `po_id, supplier_id, created_by_user_id, status, issue_date,
expected_date, receive_date, completion_date, approved_by_user_id`

// GetPO fetches one purchase order with its lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(r.pool.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE po_id = $1`, id))
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	lines, err := queryPOLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

// ListPOs lists purchase orders, newest first.
func (r *Repository) ListPOs(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders
WHERE ($1 = 0 OR supplier_id = $1)
  AND ($2 = '' OR status = $2)
ORDER BY po_id DESC
LIMIT $3 OFFSET $4`, filter.SupplierID, string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pos []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		pos = append(pos, po)
	}
	return pos, rows.Err()
}

// GetKPIs returns the list page counters in one query.
func (r *Repository) GetKPIs(ctx context.Context) (KPIs, error) {
	var k KPIs
	err := r.pool.QueryRow(ctx, `SELECT
COUNT(*),
COUNT(*) FILTER (WHERE status IN ('Received', 'Completed')),
COUNT(*) FILTER (WHERE status = 'Rejected'),
COUNT(*) FILTER (WHERE status IN ('Created', 'Pending', 'Approved', 'Confirmed', 'Delayed', 'Shipped'))
FROM purchase_orders`).Scan(&k.TotalOrders, &k.TotalReceived, &k.TotalReturned, &k.OnTheWay)
	return k, err
}

// GetReceipt fetches the goods receipt for a PO outside any transaction.
func (r *Repository) GetReceipt(ctx context.Context, poID int64) (GoodsReceipt, []GoodsReceiptLine, error) {
	return queryReceipt(ctx, r.pool, poID)
}

// SupplierEmail returns the supplier email for a PO, used as the outbound
// recipient hint.
func (r *Repository) SupplierEmail(ctx context.Context, poID int64) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `SELECT s.email FROM suppliers s
JOIN purchase_orders po ON s.supplier_id = po.supplier_id
WHERE po.po_id = $1`, poID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return email, nil
}

func (r *txRepo) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return scanPO(r.tx.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE po_id = $1 FOR UPDATE`, id))
}

func (r *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(supplier_id, created_by_user_id, status, issue_date, expected_date)
VALUES ($1, $2, $3, $4, $5)
RETURNING po_id`,
		po.SupplierID, po.CreatedBy, po.Status, po.IssueDate, po.ExpectedDate).Scan(&id)
	return id, err
}

func (r *txRepo) ReplacePOLines(ctx context.Context, poID int64, lines []POLine) error {
	if _, err := r.tx.Exec(ctx,
		`DELETE FROM purchase_order_lines WHERE po_id = $1`, poID); err != nil {
		return err
	}
	for _, line := range lines {
		_, err := r.tx.Exec(ctx, `INSERT INTO purchase_order_lines
(po_id, item_id, quantity, unit_price, purchase_cost)
VALUES ($1, $2, $3, $4, $5)`,
			poID, line.ItemID, line.Quantity, line.UnitPrice, line.LineCost)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) GetPOLines(ctx context.Context, poID int64) ([]POLine, error) {
	return queryPOLines(ctx, r.tx, poID)
}

func (r *txRepo) UpdateStatusCAS(ctx context.Context, poID int64, from, to Status) (bool, error) {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET status = $3 WHERE po_id = $1 AND status = $2`,
		poID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepo) SetExpectedDate(ctx context.Context, poID int64, date time.Time) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET expected_date = $2 WHERE po_id = $1`, poID, date)
	return err
}

func (r *txRepo) SetReceiveDateIfUnset(ctx context.Context, poID int64, date time.Time) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE purchase_orders SET receive_date = COALESCE(receive_date, $2) WHERE po_id = $1`,
		poID, date)
	return err
}

func (r *txRepo) SetCompletion(ctx context.Context, poID int64, approverID int64, date time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders
SET completion_date = $3, approved_by_user_id = $2 WHERE po_id = $1`,
		poID, approverID, date)
	return err
}

func (r *txRepo) DeletePO(ctx context.Context, poID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE po_id = $1`, poID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) GetReceiptByPO(ctx context.Context, poID int64) (GoodsReceipt, []GoodsReceiptLine, error) {
	return queryReceipt(ctx, r.tx, poID)
}

func (r *txRepo) InsertReceipt(ctx context.Context, receipt GoodsReceipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO goods_receipts
(po_id, receipt_no, receive_date, status, sent_by, receiver_name)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING receipt_id`,
		receipt.POID, receipt.ReceiptNo, receipt.ReceiveDate, receipt.Status,
		receipt.SentBy, receipt.ReceiverName).Scan(&id)
	return id, err
}

func (r *txRepo) InsertReceiptLine(ctx context.Context, line GoodsReceiptLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO goods_receipt_lines
(receipt_id, item_id, quantity, uom, warehouse)
VALUES ($1, $2, $3, $4, $5)`,
		line.ReceiptID, line.ItemID, line.Quantity, line.UOM, line.Warehouse)
	return err
}

func (r *txRepo) SupplierCompanyName(ctx context.Context, supplierID int64) (string, error) {
	var name *string
	err := r.tx.QueryRow(ctx,
		`SELECT company_name FROM suppliers WHERE supplier_id = $1`, supplierID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	if name == nil {
		return "", nil
	}
	return *name, nil
}

func (r *txRepo) AddItemStock(ctx context.Context, itemID int64, qty int) (items.Item, error) {
	var item items.Item
	err := r.tx.QueryRow(ctx, `UPDATE items
SET stock_quantity = stock_quantity + $2, updated_at = NOW()
WHERE item_id = $1
RETURNING item_id, item_code, item_name, stock_quantity, threshold_quantity`,
		itemID, qty).Scan(&item.ID, &item.Code, &item.Name, &item.Stock, &item.Threshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return items.Item{}, items.ErrNotFound
		}
		return items.Item{}, err
	}
	return item, nil
}

func (r *txRepo) MarkDelayed(ctx context.Context, today time.Time) (int64, error) {
	names := make([]string, len(delaySweepStatuses))
	for i, s := range delaySweepStatuses {
		names[i] = string(s)
	}
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2
WHERE status = ANY($1) AND expected_date < $3`,
		names, StatusDelayed, today)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *txRepo) OpenAlertExists(ctx context.Context, itemID int64, alertType items.AlertType) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM stock_alerts WHERE item_id = $1 AND alert_type = $2 AND resolved = FALSE)`,
		itemID, alertType).Scan(&exists)
	return exists, err
}

func (r *txRepo) ResolveAlerts(ctx context.Context, itemID int64, types ...items.AlertType) error {
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

func (r *txRepo) CreateAlert(ctx context.Context, itemID int64, alertType items.AlertType) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO stock_alerts (item_id, alert_type, resolved) VALUES ($1, $2, FALSE)`,
		itemID, alertType)
	return err
}

func (r *txRepo) NotifyRole(ctx context.Context, role, title, message, link string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO notifications (user_id, title, message, link)
SELECT user_id, $2, $3, $4 FROM users WHERE role = $1 AND active = TRUE`,
		role, title, message, link)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryPOLines(ctx context.Context, q querier, poID int64) ([]POLine, error) {
	rows, err := q.Query(ctx, `SELECT line_id, po_id, item_id, quantity, unit_price, purchase_cost
FROM purchase_order_lines WHERE po_id = $1 ORDER BY line_id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []POLine
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.POID, &line.ItemID, &line.Quantity,
			&line.UnitPrice, &line.LineCost); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func queryReceipt(ctx context.Context, q querier, poID int64) (GoodsReceipt, []GoodsReceiptLine, error) {
	var receipt GoodsReceipt
	err := q.QueryRow(ctx, `SELECT receipt_id, po_id, receipt_no, receive_date, status, sent_by, receiver_name
FROM goods_receipts WHERE po_id = $1`, poID).Scan(
		&receipt.ID, &receipt.POID, &receipt.ReceiptNo, &receipt.ReceiveDate,
		&receipt.Status, &receipt.SentBy, &receipt.ReceiverName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoodsReceipt{}, nil, ErrNoReceipt
		}
		return GoodsReceipt{}, nil, err
	}

	rows, err := q.Query(ctx, `SELECT line_id, receipt_id, item_id, quantity, uom, warehouse
FROM goods_receipt_lines WHERE receipt_id = $1 ORDER BY line_id`, receipt.ID)
	if err != nil {
		return GoodsReceipt{}, nil, err
	}
	defer rows.Close()

	var lines []GoodsReceiptLine
	for rows.Next() {
		var line GoodsReceiptLine
		if err := rows.Scan(&line.ID, &line.ReceiptID, &line.ItemID, &line.Quantity,
			&line.UOM, &line.Warehouse); err != nil {
			return GoodsReceipt{}, nil, err
		}
		lines = append(lines, line)
	}
	return receipt, lines, rows.Err()
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.SupplierID, &po.CreatedBy, &po.Status, &po.IssueDate,
		&po.ExpectedDate, &po.ReceiveDate, &po.CompletionDate, &po.ApprovedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}
