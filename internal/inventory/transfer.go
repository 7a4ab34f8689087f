package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Transfer moves stock between two warehouses as one unit. Every origin line is
// checked before the header is created; the header, its lines and the 2×N
// movements commit together. The ledger posting of the transfer value happens
// after commit and only ever yields warnings.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return TransferResult{}, err
	}
	if in.OriginWarehouseID == in.DestinationWarehouseID {
		return TransferResult{}, shared.Validation("destination", "must differ from origin")
	}
	for i, line := range in.Lines {
		if err := positive(fmt.Sprintf("lines[%d].quantity", i), line.Quantity); err != nil {
			return TransferResult{}, err
		}
		if line.UnitCost.IsNegative() {
			return TransferResult{}, shared.Validation(fmt.Sprintf("lines[%d].unit_cost", i), "must not be negative")
		}
		if err := shared.CheckScale(fmt.Sprintf("lines[%d].unit_cost", i), line.UnitCost, shared.MoneyScale); err != nil {
			return TransferResult{}, err
		}
	}
	date := s.dateOr(in.Date)

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result = TransferResult{}
		if err := tx.CheckWarehouse(ctx, in.EntityID, in.OriginWarehouseID); err != nil {
			return err
		}
		if err := tx.CheckWarehouse(ctx, in.EntityID, in.DestinationWarehouseID); err != nil {
			return err
		}
		lines := make([]TransferLine, 0, len(in.Lines))
		keys := make([]rowKey, 0, 2*len(in.Lines))
		need := make(map[rowKey]decimal.Decimal)
		for _, l := range in.Lines {
			cost, err := tx.ProductCost(ctx, in.EntityID, l.ProductID)
			if err != nil {
				return err
			}
			if l.UnitCost.IsPositive() {
				cost = l.UnitCost
			}
			lines = append(lines, TransferLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: cost})
			origin := rowKey{ProductID: l.ProductID, WarehouseID: in.OriginWarehouseID}
			keys = append(keys, origin, rowKey{ProductID: l.ProductID, WarehouseID: in.DestinationWarehouseID})
			need[origin] = need[origin].Add(l.Quantity)
		}
		st, err := lockRows(ctx, tx, in.EntityID, keys)
		if err != nil {
			return err
		}
		if err := st.checkAvailable(need); err != nil {
			return err
		}

		header, err := tx.InsertTransfer(ctx, TransferHeader{
			EntityID:               in.EntityID,
			OriginWarehouseID:      in.OriginWarehouseID,
			DestinationWarehouseID: in.DestinationWarehouseID,
			Date:                   date,
			Note:                   in.Note,
			CreatedBy:              in.ActorID,
			Lines:                  lines,
		})
		if err != nil {
			return err
		}
		result.Header = header
		result.Value = decimal.Zero
		for _, line := range header.Lines {
			for _, side := range []struct {
				typ       MovementType
				warehouse int64
				note      string
			}{
				{MovementOut, in.OriginWarehouseID, fmt.Sprintf("Transfert #%d vers entrepôt %d", header.ID, in.DestinationWarehouseID)},
				{MovementIn, in.DestinationWarehouseID, fmt.Sprintf("Transfert #%d depuis entrepôt %d", header.ID, in.OriginWarehouseID)},
			} {
				mv, err := st.move(ctx, Movement{
					EntityID:    in.EntityID,
					Date:        date,
					Type:        side.typ,
					ProductID:   line.ProductID,
					WarehouseID: side.warehouse,
					Quantity:    line.Quantity,
					Note:        side.note,
					TransferID:  header.ID,
					CreatedBy:   in.ActorID,
				})
				if err != nil {
					return err
				}
				result.Movements = append(result.Movements, mv)
			}
			result.Value = result.Value.Add(line.Value())
		}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.record(ctx, in.EntityID, in.ActorID, "inventory.transfer", "transfer", result.Header.ID, map[string]any{
		"origin":      in.OriginWarehouseID,
		"destination": in.DestinationWarehouseID,
		"lines":       len(result.Header.Lines),
		"value":       result.Value.String(),
	})

	if s.integration != nil && result.Value.IsPositive() {
		evt := TransferPostedEvent{
			EntityID:               in.EntityID,
			TransferID:             result.Header.ID,
			OriginWarehouseID:      in.OriginWarehouseID,
			DestinationWarehouseID: in.DestinationWarehouseID,
			Date:                   date,
			Value:                  result.Value,
			ActorID:                in.ActorID,
		}
		if err := s.integration.HandleTransferPosted(ctx, evt); err != nil {
			var failure *shared.PostingFailure
			if !errors.As(err, &failure) {
				err = &shared.PostingFailure{ReferenceType: "TRANSFER", ReferenceID: result.Header.ID, Err: err}
			}
			s.logger.Warn("transfer posting deferred",
				slog.Int64("transfer_id", result.Header.ID),
				slog.Any("error", err))
			result.Warnings = append(result.Warnings, err)
		}
	}
	return result, nil
}
