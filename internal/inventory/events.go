package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransferPostedEvent represents a committed transfer ready for ledger posting.
// Value is the sum of quantity times unit cost over the transfer lines.
type TransferPostedEvent struct {
	EntityID               int64
	TransferID             int64
	OriginWarehouseID      int64
	DestinationWarehouseID int64
	Date                   time.Time
	Value                  decimal.Decimal
	ActorID                int64
}

// IntegrationHandler receives committed stock events. It runs after the stock
// transaction commits; its error is reported as a warning, never rolled back.
type IntegrationHandler interface {
	HandleTransferPosted(ctx context.Context, evt TransferPostedEvent) error
}
