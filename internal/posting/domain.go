// Package posting turns business events into balanced ledger documents and
// carries them from the committed business mutation to the ledger through a
// durable queue.
package posting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Kind enumerates the business events the engine posts. It doubles as the
// reference type of the resulting ledger lines.
type Kind string

const (
	KindSale            Kind = "SALE"
	KindPurchase        Kind = "PURCHASE"
	KindExpense         Kind = "EXPENSE"
	KindCharge          Kind = "CHARGE"
	KindBankOperation   Kind = "BANK_OPERATION"
	KindTransfer        Kind = "TRANSFER"
	KindClientPayment   Kind = "CLIENT_PAYMENT"
	KindSupplierPayment Kind = "SUPPLIER_PAYMENT"
)

// Kinds lists every postable kind in sweep order.
func Kinds() []Kind {
	return []Kind{
		KindSale, KindPurchase, KindExpense, KindCharge,
		KindBankOperation, KindTransfer, KindClientPayment, KindSupplierPayment,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// PaymentMode selects the settlement account of the paid portion.
type PaymentMode string

const (
	ModeCash        PaymentMode = "CASH"
	ModeMobileMoney PaymentMode = "MOBILE_MONEY"
	ModeBank        PaymentMode = "BANK"
)

// Valid reports whether m is a known mode.
func (m PaymentMode) Valid() bool {
	return m == ModeCash || m == ModeMobileMoney || m == ModeBank
}

// Direction qualifies a bank operation.
type Direction string

const (
	// DirectionDeposit moves cash on hand to the bank.
	DirectionDeposit Direction = "DEPOSIT"
	// DirectionWithdrawal moves money from the bank to cash on hand.
	DirectionWithdrawal Direction = "WITHDRAWAL"
)

// Event is the typed descriptor of a committed business document.
type Event struct {
	EntityID       int64           `json:"entity_id" validate:"gt=0"`
	Kind           Kind            `json:"kind" validate:"required"`
	DocumentID     int64           `json:"document_id" validate:"gt=0"`
	PieceNumber    string          `json:"piece_number,omitempty" validate:"max=64"`
	Date           time.Time       `json:"date"`
	Total          decimal.Decimal `json:"total"`
	Paid           decimal.Decimal `json:"paid"`
	Mode           PaymentMode     `json:"mode,omitempty"`
	Direction      Direction       `json:"direction,omitempty"`
	CounterpartyID int64           `json:"counterparty_id,omitempty"`
	Label          string          `json:"label,omitempty" validate:"max=255"`
	ActorID        int64           `json:"actor_id"`

	// Warehouses of a TRANSFER; zero elsewhere.
	OriginWarehouseID      int64 `json:"origin_warehouse_id,omitempty"`
	DestinationWarehouseID int64 `json:"destination_warehouse_id,omitempty"`
}

// keyNamespace scopes posting keys so they never collide with other UUIDv5 users.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("backoffice.posting"))

// Key is the deterministic identity of the document being posted.
func (e Event) Key() uuid.UUID {
	return uuid.NewSHA1(keyNamespace, []byte(fmt.Sprintf("%d:%s:%d", e.EntityID, e.Kind, e.DocumentID)))
}

// Validate checks the fields the rules depend on.
func (e Event) Validate() error {
	if err := shared.ValidateStruct(e); err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return shared.Validation("kind", "unknown kind %q", e.Kind)
	}
	if e.Date.IsZero() {
		return shared.Validation("date", "is required")
	}
	total, paid := e.Total.Round(shared.MoneyScale), e.Paid.Round(shared.MoneyScale)
	if !total.IsPositive() {
		return shared.Validation("total", "must be positive once rounded to cents")
	}
	if paid.IsNegative() || paid.GreaterThan(total) {
		return shared.Validation("paid", "must lie between 0 and total")
	}
	switch e.Kind {
	case KindBankOperation:
		if e.Direction != DirectionDeposit && e.Direction != DirectionWithdrawal {
			return shared.Validation("direction", "must be DEPOSIT or WITHDRAWAL")
		}
	case KindClientPayment, KindSupplierPayment:
		if !e.Mode.Valid() {
			return shared.Validation("mode", "unknown payment mode %q", e.Mode)
		}
	case KindTransfer:
	default:
		if paid.IsPositive() && !e.Mode.Valid() {
			return shared.Validation("mode", "unknown payment mode %q", e.Mode)
		}
	}
	return nil
}
