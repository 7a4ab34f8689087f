package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates the direction of a stock movement.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "OUT"
)

// AdjustmentNote annotates movements written by a physical count.
const AdjustmentNote = "Ajustement d'inventaire"

// StockRow holds the quantity on hand of a product in a warehouse.
type StockRow struct {
	ID              int64           `json:"id"`
	EntityID        int64           `json:"entity_id"`
	ProductID       int64           `json:"product_id"`
	WarehouseID     int64           `json:"warehouse_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	InitialQuantity decimal.Decimal `json:"initial_quantity"`
	Version         int64           `json:"version"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Movement is one append-only entry of the stock log.
type Movement struct {
	ID          int64           `json:"id"`
	EntityID    int64           `json:"entity_id"`
	Date        time.Time       `json:"date"`
	Type        MovementType    `json:"type"`
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Note        string          `json:"note"`
	TransferID  int64           `json:"transfer_id,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MovementInput describes a single entry or exit.
type MovementInput struct {
	EntityID    int64 `validate:"gt=0"`
	ProductID   int64 `validate:"gt=0"`
	WarehouseID int64 `validate:"gt=0"`
	Quantity    decimal.Decimal
	Date        time.Time
	Note        string `validate:"max=255"`
	ActorID     int64
}

// DocumentLine is one line of a sale or purchase affecting stock.
type DocumentLine struct {
	ProductID   int64 `validate:"gt=0"`
	WarehouseID int64 `validate:"gt=0"`
	Quantity    decimal.Decimal
}

// DocumentStockInput groups the lines of one sale or purchase. Key identifies the
// document within the entity; its stock effect applies once.
type DocumentStockInput struct {
	EntityID  int64  `validate:"gt=0"`
	Key       string `validate:"required,max=64"`
	Reference string `validate:"required,max=64"`
	Date      time.Time
	ActorID   int64
	Lines     []DocumentLine `validate:"required,min=1,dive"`
}

// TransferLineInput is a product moved by a transfer. A zero unit cost falls back
// to the product's standard cost.
type TransferLineInput struct {
	ProductID int64 `validate:"gt=0"`
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

// TransferInput describes a transfer request between two warehouses.
type TransferInput struct {
	EntityID               int64 `validate:"gt=0"`
	OriginWarehouseID      int64 `validate:"gt=0"`
	DestinationWarehouseID int64 `validate:"gt=0"`
	Date                   time.Time
	Note                   string `validate:"max=255"`
	ActorID                int64
	Lines                  []TransferLineInput `validate:"required,min=1,dive"`
}

// TransferHeader is the persisted transfer.
type TransferHeader struct {
	ID                     int64          `json:"id"`
	EntityID               int64          `json:"entity_id"`
	OriginWarehouseID      int64          `json:"origin_warehouse_id"`
	DestinationWarehouseID int64          `json:"destination_warehouse_id"`
	Date                   time.Time      `json:"date"`
	Note                   string         `json:"note"`
	CreatedBy              int64          `json:"created_by"`
	CreatedAt              time.Time      `json:"created_at"`
	Lines                  []TransferLine `json:"lines"`
}

// TransferLine is a persisted transfer line.
type TransferLine struct {
	ID         int64           `json:"id"`
	TransferID int64           `json:"transfer_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
}

// Value is the stock valuation of the line.
func (l TransferLine) Value() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// TransferResult is returned once a transfer committed.
type TransferResult struct {
	Header    TransferHeader  `json:"header"`
	Movements []Movement      `json:"movements"`
	Value     decimal.Decimal `json:"value"`
	Warnings  []error         `json:"-"`
}

// Count pairs a stock row with its physically counted quantity.
type Count struct {
	StockRowID int64 `validate:"gt=0"`
	Counted    decimal.Decimal
}

// ReconcileInput is a batch of counts applied together.
type ReconcileInput struct {
	EntityID int64 `validate:"gt=0"`
	Date     time.Time
	ActorID  int64
	Counts   []Count `validate:"required,min=1,dive"`
}

// ReconcileOutcome reports what happened to one counted row.
type ReconcileOutcome struct {
	StockRowID  int64           `json:"stock_row_id"`
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Previous    decimal.Decimal `json:"previous"`
	Counted     decimal.Decimal `json:"counted"`
	Delta       decimal.Decimal `json:"delta"`
	MovementID  int64           `json:"movement_id,omitempty"`
}

// StockQuery filters stock rows. Zero values disable a filter.
type StockQuery struct {
	EntityID    int64
	ProductID   int64
	WarehouseID int64
	Limit       int
}

// MovementQuery filters movements. Zero values disable a filter.
type MovementQuery struct {
	EntityID    int64
	ProductID   int64
	WarehouseID int64
	TransferID  int64
	Type        MovementType
	From        time.Time
	To          time.Time
	Limit       int
}

// ErrRowNotFound indicates a (product, warehouse) pair was never touched.
var ErrRowNotFound = errors.New("inventory: stock row not found")

// ErrDocumentApplied indicates the stock effect of a document was already applied.
var ErrDocumentApplied = errors.New("inventory: document stock already applied")

// ErrVersionConflict indicates a stock row changed between read and write.
var ErrVersionConflict = errors.New("inventory: stock row version conflict")

type rowKey struct {
	ProductID   int64
	WarehouseID int64
}

func (k rowKey) less(o rowKey) bool {
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	return k.WarehouseID < o.WarehouseID
}
