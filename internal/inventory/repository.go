package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// txAttempts bounds replays of a stock transaction aborted by Postgres.
const txAttempts = 3

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ProductCost(ctx context.Context, entityID, productID int64) (decimal.Decimal, error)
	CheckWarehouse(ctx context.Context, entityID, warehouseID int64) error
	GetRowForUpdate(ctx context.Context, entityID, productID, warehouseID int64) (StockRow, error)
	GetRowByIDForUpdate(ctx context.Context, id int64) (StockRow, error)
	InsertRow(ctx context.Context, row StockRow) (StockRow, error)
	UpdateRowQuantity(ctx context.Context, row StockRow, quantity decimal.Decimal) (StockRow, error)
	InsertMovement(ctx context.Context, mv Movement) (Movement, error)
	InsertTransfer(ctx context.Context, header TransferHeader) (TransferHeader, error)
	ClaimDocument(ctx context.Context, entityID int64, key string) (bool, error)
}

// WithTx executes the callback inside a serializable transaction, replaying it
// when Postgres reports a serialization failure or deadlock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithRetry(ctx, r.pool, pgx.Serializable, txAttempts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const rowColumns = `id, entity_id, product_id, warehouse_id, quantity, initial_quantity, version, updated_at`

func scanRow(row pgx.Row) (StockRow, error) {
	var s StockRow
	err := row.Scan(&s.ID, &s.EntityID, &s.ProductID, &s.WarehouseID, &s.Quantity, &s.InitialQuantity, &s.Version, &s.UpdatedAt)
	return s, err
}

// ListStock returns stock rows matching q.
func (r *Repository) ListStock(ctx context.Context, q StockQuery) ([]StockRow, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	f := newFilter(q.EntityID)
	if q.ProductID > 0 {
		f.add("product_id = $%d", q.ProductID)
	}
	if q.WarehouseID > 0 {
		f.add("warehouse_id = $%d", q.WarehouseID)
	}
	args := append(f.args, shared.ClampLimit(q.Limit))
	rows, err := r.pool.Query(ctx, `SELECT `+rowColumns+` FROM stock_rows`+f.where()+
		fmt.Sprintf(` ORDER BY product_id, warehouse_id LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StockRow{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListMovements returns movements matching q in log order.
func (r *Repository) ListMovements(ctx context.Context, q MovementQuery) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	f := newFilter(q.EntityID)
	if q.ProductID > 0 {
		f.add("product_id = $%d", q.ProductID)
	}
	if q.WarehouseID > 0 {
		f.add("warehouse_id = $%d", q.WarehouseID)
	}
	if q.TransferID > 0 {
		f.add("transfer_id = $%d", q.TransferID)
	}
	if q.Type != "" {
		f.add("type = $%d", string(q.Type))
	}
	if !q.From.IsZero() {
		f.add("date >= $%d", q.From)
	}
	if !q.To.IsZero() {
		f.add("date <= $%d", q.To)
	}
	args := append(f.args, shared.ClampLimit(q.Limit))
	rows, err := r.pool.Query(ctx, `SELECT id, entity_id, date, type, product_id, warehouse_id, quantity, note,
COALESCE(transfer_id, 0), created_by, created_at FROM movements`+f.where()+
		fmt.Sprintf(` ORDER BY date, id LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Movement{}
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.EntityID, &mv.Date, &mv.Type, &mv.ProductID, &mv.WarehouseID, &mv.Quantity,
			&mv.Note, &mv.TransferID, &mv.CreatedBy, &mv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

type filter struct {
	clauses []string
	args    []any
}

func newFilter(entityID int64) *filter {
	return &filter{clauses: []string{"entity_id = $1"}, args: []any{entityID}}
}

func (f *filter) add(clause string, value any) {
	f.args = append(f.args, value)
	f.clauses = append(f.clauses, fmt.Sprintf(clause, len(f.args)))
}

func (f *filter) where() string {
	return " WHERE " + strings.Join(f.clauses, " AND ")
}
