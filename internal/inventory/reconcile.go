package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Reconcile aligns recorded quantities with a physical count. The batch is one
// transaction: an unknown row, a foreign row or a negative count leaves every row
// untouched.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) ([]ReconcileOutcome, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(in.Counts))
	for i, c := range in.Counts {
		if c.Counted.IsNegative() {
			return nil, shared.Validation(fmt.Sprintf("counts[%d].counted", i), "must not be negative")
		}
		if err := shared.CheckScale(fmt.Sprintf("counts[%d].counted", i), c.Counted, shared.QuantityScale); err != nil {
			return nil, err
		}
		if seen[c.StockRowID] {
			return nil, shared.Validation(fmt.Sprintf("counts[%d].stock_row_id", i), "duplicate row %d", c.StockRowID)
		}
		seen[c.StockRowID] = true
	}
	date := s.dateOr(in.Date)

	var outcomes []ReconcileOutcome
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		outcomes = make([]ReconcileOutcome, 0, len(in.Counts))
		ids := make([]int64, 0, len(in.Counts))
		for _, c := range in.Counts {
			ids = append(ids, c.StockRowID)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		byID := make(map[int64]StockRow, len(ids))
		st := &stockSet{tx: tx, entityID: in.EntityID, rows: make(map[rowKey]StockRow, len(ids))}
		for _, id := range ids {
			row, err := tx.GetRowByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if row.EntityID != in.EntityID {
				return &shared.AuthorizationError{EntityID: in.EntityID, Reason: fmt.Sprintf("stock row %d belongs to another entity", row.ID)}
			}
			byID[id] = row
			st.rows[rowKey{ProductID: row.ProductID, WarehouseID: row.WarehouseID}] = row
		}
		for _, c := range in.Counts {
			row := byID[c.StockRowID]
			delta := c.Counted.Sub(row.Quantity)
			outcome := ReconcileOutcome{
				StockRowID:  row.ID,
				ProductID:   row.ProductID,
				WarehouseID: row.WarehouseID,
				Previous:    row.Quantity,
				Counted:     c.Counted,
				Delta:       delta,
			}
			if !delta.IsZero() {
				mv := Movement{
					EntityID:    in.EntityID,
					Date:        date,
					Type:        MovementIn,
					ProductID:   row.ProductID,
					WarehouseID: row.WarehouseID,
					Quantity:    delta.Abs(),
					Note:        AdjustmentNote,
					CreatedBy:   in.ActorID,
				}
				if delta.IsNegative() {
					mv.Type = MovementOut
				}
				written, err := st.move(ctx, mv)
				if err != nil {
					return err
				}
				outcome.MovementID = written.ID
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, in.EntityID, in.ActorID, "inventory.reconcile", "stock_count", in.Counts[0].StockRowID, map[string]any{
		"rows": len(outcomes),
	})
	return outcomes, nil
}
