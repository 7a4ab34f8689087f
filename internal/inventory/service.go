package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStock(ctx context.Context, q StockQuery) ([]StockRow, error)
	ListMovements(ctx context.Context, q MovementQuery) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger, transfer and reconciliation operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	integration IntegrationHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. audit and integration may be nil.
func NewService(repo RepositoryPort, audit AuditPort, integration IntegrationHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, integration: integration, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RecordEntry appends an IN movement and increments the quantity, creating the
// stock row at zero when the product was never stored in the warehouse.
func (s *Service) RecordEntry(ctx context.Context, in MovementInput) (Movement, error) {
	return s.recordOne(ctx, in, MovementIn)
}

// RecordExit appends an OUT movement and decrements the quantity. Insufficient
// stock aborts with no mutation.
func (s *Service) RecordExit(ctx context.Context, in MovementInput) (Movement, error) {
	return s.recordOne(ctx, in, MovementOut)
}

func (s *Service) recordOne(ctx context.Context, in MovementInput, typ MovementType) (Movement, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Movement{}, err
	}
	if err := positive("quantity", in.Quantity); err != nil {
		return Movement{}, err
	}
	op := stockOp{
		EntityID: in.EntityID,
		ActorID:  in.ActorID,
		Date:     s.dateOr(in.Date),
		Type:     typ,
		Lines:    []opLine{{Key: rowKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}, Quantity: in.Quantity, Note: in.Note}},
	}
	movements, err := s.apply(ctx, op)
	if err != nil {
		return Movement{}, err
	}
	return movements[0], nil
}

// IssueDocument applies every exit of one sale in a single transaction: all lines
// are checked against locked rows before any quantity changes. A document key
// seen before yields ErrDocumentApplied and changes nothing.
func (s *Service) IssueDocument(ctx context.Context, in DocumentStockInput) ([]Movement, error) {
	return s.applyDocument(ctx, in, MovementOut)
}

// ReceiveDocument applies every entry of one purchase in a single transaction.
func (s *Service) ReceiveDocument(ctx context.Context, in DocumentStockInput) ([]Movement, error) {
	return s.applyDocument(ctx, in, MovementIn)
}

func (s *Service) applyDocument(ctx context.Context, in DocumentStockInput, typ MovementType) ([]Movement, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	op := stockOp{EntityID: in.EntityID, ActorID: in.ActorID, Date: s.dateOr(in.Date), Type: typ, Document: in.Key}
	for i, line := range in.Lines {
		if err := positive(fmt.Sprintf("lines[%d].quantity", i), line.Quantity); err != nil {
			return nil, err
		}
		op.Lines = append(op.Lines, opLine{
			Key:      rowKey{ProductID: line.ProductID, WarehouseID: line.WarehouseID},
			Quantity: line.Quantity,
			Note:     in.Reference,
		})
	}
	return s.apply(ctx, op)
}

// ListStock returns the stock rows of the actor's entity.
func (s *Service) ListStock(ctx context.Context, actor shared.Actor, q StockQuery) ([]StockRow, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	q.EntityID = actor.EntityID
	return s.repo.ListStock(ctx, q)
}

// ListMovements returns the movements of the actor's entity.
func (s *Service) ListMovements(ctx context.Context, actor shared.Actor, q MovementQuery) ([]Movement, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if q.Type != "" && q.Type != MovementIn && q.Type != MovementOut {
		return nil, shared.Validation("type", "must be IN or OUT")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, shared.Validation("to", "must not precede from")
	}
	q.EntityID = actor.EntityID
	return s.repo.ListMovements(ctx, q)
}

type opLine struct {
	Key      rowKey
	Quantity decimal.Decimal
	Note     string
}

type stockOp struct {
	EntityID int64
	ActorID  int64
	Date     time.Time
	Type     MovementType
	Lines    []opLine
	Document string
}

func (s *Service) apply(ctx context.Context, op stockOp) ([]Movement, error) {
	var movements []Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements = nil
		keys := make([]rowKey, 0, len(op.Lines))
		for _, line := range op.Lines {
			keys = append(keys, line.Key)
		}
		if err := checkReferences(ctx, tx, op.EntityID, keys); err != nil {
			return err
		}
		if op.Document != "" {
			claimed, err := tx.ClaimDocument(ctx, op.EntityID, op.Document)
			if err != nil {
				return err
			}
			if !claimed {
				return ErrDocumentApplied
			}
		}
		st, err := lockRows(ctx, tx, op.EntityID, keys)
		if err != nil {
			return err
		}
		if op.Type == MovementOut {
			need := make(map[rowKey]decimal.Decimal)
			for _, line := range op.Lines {
				need[line.Key] = need[line.Key].Add(line.Quantity)
			}
			if err := st.checkAvailable(need); err != nil {
				return err
			}
		}
		for _, line := range op.Lines {
			mv := Movement{
				EntityID:    op.EntityID,
				Date:        op.Date,
				Type:        op.Type,
				ProductID:   line.Key.ProductID,
				WarehouseID: line.Key.WarehouseID,
				Quantity:    line.Quantity,
				Note:        line.Note,
				CreatedBy:   op.ActorID,
			}
			written, err := st.move(ctx, mv)
			if err != nil {
				return err
			}
			movements = append(movements, written)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, op.EntityID, op.ActorID, "inventory."+string(op.Type), "movement", movements[0].ID, map[string]any{
		"lines": len(movements),
	})
	return movements, nil
}

// stockSet holds the rows locked by the running transaction.
type stockSet struct {
	tx       TxRepository
	entityID int64
	rows     map[rowKey]StockRow
}

// lockRows locks every distinct key in (product, warehouse) order so concurrent
// operations touching overlapping rows cannot deadlock. Missing rows are kept as
// zero-quantity placeholders and only created when first credited.
func lockRows(ctx context.Context, tx TxRepository, entityID int64, keys []rowKey) (*stockSet, error) {
	distinct := make(map[rowKey]struct{}, len(keys))
	ordered := make([]rowKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := distinct[k]; ok {
			continue
		}
		distinct[k] = struct{}{}
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].less(ordered[j]) })
	set := &stockSet{tx: tx, entityID: entityID, rows: make(map[rowKey]StockRow, len(ordered))}
	for _, k := range ordered {
		row, err := tx.GetRowForUpdate(ctx, entityID, k.ProductID, k.WarehouseID)
		if err != nil && !errors.Is(err, ErrRowNotFound) {
			return nil, err
		}
		set.rows[k] = row
	}
	return set, nil
}

func (s *stockSet) checkAvailable(need map[rowKey]decimal.Decimal) error {
	keys := make([]rowKey, 0, len(need))
	for k := range need {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	for _, k := range keys {
		available := s.rows[k].Quantity
		if available.LessThan(need[k]) {
			return &shared.InsufficientStockError{
				ProductID:   k.ProductID,
				WarehouseID: k.WarehouseID,
				Available:   available,
				Requested:   need[k],
			}
		}
	}
	return nil
}

// move writes mv and applies its signed delta to the locked row.
func (s *stockSet) move(ctx context.Context, mv Movement) (Movement, error) {
	key := rowKey{ProductID: mv.ProductID, WarehouseID: mv.WarehouseID}
	row := s.rows[key]
	delta := mv.Quantity
	if mv.Type == MovementOut {
		delta = delta.Neg()
		if row.ID == 0 || row.Quantity.LessThan(mv.Quantity) {
			return Movement{}, &shared.InsufficientStockError{
				ProductID:   key.ProductID,
				WarehouseID: key.WarehouseID,
				Available:   row.Quantity,
				Requested:   mv.Quantity,
			}
		}
	}
	if row.ID == 0 {
		created, err := s.tx.InsertRow(ctx, StockRow{EntityID: s.entityID, ProductID: key.ProductID, WarehouseID: key.WarehouseID})
		if err != nil {
			return Movement{}, err
		}
		row = created
	}
	updated, err := s.tx.UpdateRowQuantity(ctx, row, row.Quantity.Add(delta))
	if err != nil {
		return Movement{}, err
	}
	s.rows[key] = updated
	return s.tx.InsertMovement(ctx, mv)
}

func checkReferences(ctx context.Context, tx TxRepository, entityID int64, keys []rowKey) error {
	products := make(map[int64]bool)
	warehouses := make(map[int64]bool)
	for _, k := range keys {
		if !products[k.ProductID] {
			if _, err := tx.ProductCost(ctx, entityID, k.ProductID); err != nil {
				return err
			}
			products[k.ProductID] = true
		}
		if !warehouses[k.WarehouseID] {
			if err := tx.CheckWarehouse(ctx, entityID, k.WarehouseID); err != nil {
				return err
			}
			warehouses[k.WarehouseID] = true
		}
	}
	return nil
}

func positive(field string, q decimal.Decimal) error {
	if !q.IsPositive() {
		return shared.Validation(field, "must be positive")
	}
	return shared.CheckScale(field, q, shared.QuantityScale)
}

func (s *Service) dateOr(d time.Time) time.Time {
	if d.IsZero() {
		return s.now().UTC()
	}
	return d
}

func (s *Service) record(ctx context.Context, entityID, actorID int64, action, object string, objectID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		EntityID: entityID,
		ActorID:  actorID,
		Action:   action,
		Object:   object,
		ObjectID: fmt.Sprintf("%d", objectID),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("inventory audit failed", slog.String("action", action), slog.Any("error", err))
	}
}
