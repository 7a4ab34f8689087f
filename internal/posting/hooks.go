package posting

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// EventSubmitter queues posting events.
type EventSubmitter interface {
	Submit(ctx context.Context, evt Event) error
}

// Hooks turns inventory events into posting events.
type Hooks struct {
	submitter EventSubmitter
}

// NewHooks constructs inventory integration hooks.
func NewHooks(submitter EventSubmitter) *Hooks {
	return &Hooks{submitter: submitter}
}

// HandleTransferPosted queues the TRANSFER document valued at the transfer cost.
// A value that rounds to zero cents has nothing to post.
func (h *Hooks) HandleTransferPosted(ctx context.Context, evt inventory.TransferPostedEvent) error {
	if h == nil || h.submitter == nil {
		return nil
	}
	value := evt.Value.Round(shared.MoneyScale)
	if !value.IsPositive() {
		return nil
	}
	return h.submitter.Submit(ctx, Event{
		EntityID:               evt.EntityID,
		Kind:                   KindTransfer,
		DocumentID:             evt.TransferID,
		PieceNumber:            fmt.Sprintf("TR-%d", evt.TransferID),
		Date:                   evt.Date,
		Total:                  value,
		ActorID:                evt.ActorID,
		OriginWarehouseID:      evt.OriginWarehouseID,
		DestinationWarehouseID: evt.DestinationWarehouseID,
	})
}

var _ inventory.IntegrationHandler = (*Hooks)(nil)
