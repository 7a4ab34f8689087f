package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) ProductCost(ctx context.Context, entityID, productID int64) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT unit_cost FROM products WHERE entity_id=$1 AND id=$2`, entityID, productID).Scan(&cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, shared.NotFound("product", productID)
	}
	return cost, err
}

func (r *txRepository) CheckWarehouse(ctx context.Context, entityID, warehouseID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM warehouses WHERE entity_id=$1 AND id=$2`, entityID, warehouseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.NotFound("warehouse", warehouseID)
	}
	return err
}

func (r *txRepository) GetRowForUpdate(ctx context.Context, entityID, productID, warehouseID int64) (StockRow, error) {
	row, err := scanRow(r.tx.QueryRow(ctx, `SELECT `+rowColumns+` FROM stock_rows
WHERE entity_id=$1 AND product_id=$2 AND warehouse_id=$3 FOR UPDATE`, entityID, productID, warehouseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRow{EntityID: entityID, ProductID: productID, WarehouseID: warehouseID}, ErrRowNotFound
	}
	return row, err
}

func (r *txRepository) GetRowByIDForUpdate(ctx context.Context, id int64) (StockRow, error) {
	row, err := scanRow(r.tx.QueryRow(ctx, `SELECT `+rowColumns+` FROM stock_rows WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRow{}, shared.NotFound("stock row", id)
	}
	return row, err
}

// InsertRow creates the row at zero quantity; a concurrent creator's row is returned locked instead.
func (r *txRepository) InsertRow(ctx context.Context, row StockRow) (StockRow, error) {
	return scanRow(r.tx.QueryRow(ctx, `INSERT INTO stock_rows (entity_id, product_id, warehouse_id, quantity, initial_quantity, version, updated_at)
VALUES ($1, $2, $3, $4, $4, 1, NOW())
ON CONFLICT (entity_id, product_id, warehouse_id) DO UPDATE SET updated_at = stock_rows.updated_at
RETURNING `+rowColumns, row.EntityID, row.ProductID, row.WarehouseID, row.InitialQuantity))
}

func (r *txRepository) UpdateRowQuantity(ctx context.Context, row StockRow, quantity decimal.Decimal) (StockRow, error) {
	err := r.tx.QueryRow(ctx, `UPDATE stock_rows SET quantity=$3, version=version+1, updated_at=NOW()
WHERE id=$1 AND version=$2 RETURNING version, updated_at`, row.ID, row.Version, quantity).Scan(&row.Version, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRow{}, ErrVersionConflict
	}
	if err != nil {
		return StockRow{}, err
	}
	row.Quantity = quantity
	return row, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (Movement, error) {
	var transferID any
	if mv.TransferID > 0 {
		transferID = mv.TransferID
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO movements (entity_id, date, type, product_id, warehouse_id, quantity, note, transfer_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		mv.EntityID, mv.Date, string(mv.Type), mv.ProductID, mv.WarehouseID, mv.Quantity, mv.Note, transferID, mv.CreatedBy).
		Scan(&mv.ID, &mv.CreatedAt)
	return mv, err
}

// ClaimDocument reports false when key was already claimed for the entity.
func (r *txRepository) ClaimDocument(ctx context.Context, entityID int64, key string) (bool, error) {
	tag, err := r.tx.Exec(ctx, `INSERT INTO stock_documents (entity_id, document_key) VALUES ($1, $2)
ON CONFLICT DO NOTHING`, entityID, key)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *txRepository) InsertTransfer(ctx context.Context, header TransferHeader) (TransferHeader, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO transfers (entity_id, origin_warehouse_id, destination_warehouse_id, date, note, created_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`, header.EntityID, header.OriginWarehouseID, header.DestinationWarehouseID,
		header.Date, header.Note, header.CreatedBy).Scan(&header.ID, &header.CreatedAt)
	if err != nil {
		return TransferHeader{}, err
	}
	for i := range header.Lines {
		line := &header.Lines[i]
		line.TransferID = header.ID
		if err := r.tx.QueryRow(ctx, `INSERT INTO transfer_lines (transfer_id, product_id, quantity, unit_cost)
VALUES ($1,$2,$3,$4) RETURNING id`, header.ID, line.ProductID, line.Quantity, line.UnitCost).Scan(&line.ID); err != nil {
			return TransferHeader{}, err
		}
	}
	return header, nil
}
