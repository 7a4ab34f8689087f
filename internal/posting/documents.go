package posting

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DocumentSource lists source documents of one kind that have no ledger line yet.
type DocumentSource interface {
	Unposted(ctx context.Context, entityID int64, kind Kind, afterID int64, limit int) ([]Event, error)
}

// Documents reads source document tables.
type Documents struct {
	pool *pgxpool.Pool
}

// NewDocuments constructs a pgx-backed DocumentSource.
func NewDocuments(pool *pgxpool.Pool) *Documents {
	return &Documents{pool: pool}
}

// Every query yields: id, piece_number, date, total, paid, payment_mode, direction,
// counterparty_id, label, created_by, origin and destination warehouse. $1 entity,
// $2 reference type, $3 after id, $4 limit.
var unpostedQueries = map[Kind]string{
	KindSale: `SELECT d.id, d.piece_number, d.date, d.total, d.paid, d.payment_mode, '', COALESCE(d.client_id, 0), '', d.created_by, 0, 0
FROM sales d`,
	KindPurchase: `SELECT d.id, d.piece_number, d.date, d.total, d.paid, d.payment_mode, '', COALESCE(d.supplier_id, 0), '', d.created_by, 0, 0
FROM purchases d`,
	KindExpense: `SELECT d.id, d.piece_number, d.date, d.total, d.paid, d.payment_mode, '', COALESCE(d.supplier_id, 0), d.label, d.created_by, 0, 0
FROM expenses d`,
	KindCharge: `SELECT d.id, d.piece_number, d.date, d.total, d.paid, d.payment_mode, '', COALESCE(d.supplier_id, 0), d.label, d.created_by, 0, 0
FROM charges d`,
	KindBankOperation: `SELECT d.id, d.piece_number, d.date, d.amount, d.amount, 'BANK', d.direction, 0, d.label, d.created_by, 0, 0
FROM bank_operations d`,
	KindTransfer: `SELECT d.id, 'TR-' || d.id, d.date, COALESCE(v.value, 0), 0, '', '', 0, '', d.created_by, d.origin_warehouse_id, d.destination_warehouse_id
FROM transfers d
LEFT JOIN LATERAL (SELECT SUM(tl.quantity * tl.unit_cost) AS value FROM transfer_lines tl WHERE tl.transfer_id = d.id) v ON TRUE`,
	KindClientPayment: `SELECT d.id, d.piece_number, d.date, d.amount, d.amount, d.payment_mode, '', d.client_id, '', d.created_by, 0, 0
FROM client_payments d`,
	KindSupplierPayment: `SELECT d.id, d.piece_number, d.date, d.amount, d.amount, d.payment_mode, '', d.supplier_id, '', d.created_by, 0, 0
FROM supplier_payments d`,
}

const unpostedWhere = `
WHERE d.entity_id = $1 AND d.id > $3
  AND NOT EXISTS (
	SELECT 1 FROM ledger_lines l
	WHERE l.entity_id = d.entity_id AND l.reference_type = $2 AND l.reference_id = d.id
  )
ORDER BY d.id
LIMIT $4`

// Unposted returns up to limit documents of kind with id > afterID lacking ledger lines.
func (d *Documents) Unposted(ctx context.Context, entityID int64, kind Kind, afterID int64, limit int) ([]Event, error) {
	query, ok := unpostedQueries[kind]
	if !ok {
		return nil, fmt.Errorf("posting: no document source for %s", kind)
	}
	rows, err := d.pool.Query(ctx, query+unpostedWhere, entityID, string(kind), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("posting: scan %s documents: %w", kind, err)
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var (
			evt         Event
			piece       *string
			total, paid decimal.Decimal
			mode, dir   string
		)
		if err := rows.Scan(&evt.DocumentID, &piece, &evt.Date, &total, &paid, &mode, &dir,
			&evt.CounterpartyID, &evt.Label, &evt.ActorID, &evt.OriginWarehouseID, &evt.DestinationWarehouseID); err != nil {
			return nil, err
		}
		evt.EntityID = entityID
		evt.Kind = kind
		evt.Total = total
		evt.Paid = paid
		evt.Mode = PaymentMode(mode)
		evt.Direction = Direction(dir)
		if piece != nil {
			evt.PieceNumber = *piece
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}
