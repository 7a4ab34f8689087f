// Package commerce completes business documents: it applies their stock effect and
// hands their accounting effect to the posting queue.
package commerce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/inventory"
	"github.com/odyssey-erp/backoffice/internal/posting"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// StockPort applies the stock effect of a document.
type StockPort interface {
	IssueDocument(ctx context.Context, in inventory.DocumentStockInput) ([]inventory.Movement, error)
	ReceiveDocument(ctx context.Context, in inventory.DocumentStockInput) ([]inventory.Movement, error)
}

// SubmitPort queues posting events.
type SubmitPort interface {
	Submit(ctx context.Context, evt posting.Event) error
}

// Line is a stocked product on a sale or purchase.
type Line struct {
	ProductID   int64           `json:"product_id" validate:"gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"gt=0"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// Sale is a committed sale document.
type Sale struct {
	DocumentID  int64               `json:"document_id" validate:"gt=0"`
	PieceNumber string              `json:"piece_number" validate:"max=64"`
	Date        time.Time           `json:"-"`
	Lines       []Line              `json:"lines" validate:"dive"`
	Total       decimal.Decimal     `json:"total"`
	Paid        decimal.Decimal     `json:"paid"`
	Mode        posting.PaymentMode `json:"mode"`
	ClientID    int64               `json:"client_id"`
}

// Purchase is a committed purchase document.
type Purchase struct {
	DocumentID  int64               `json:"document_id" validate:"gt=0"`
	PieceNumber string              `json:"piece_number" validate:"max=64"`
	Date        time.Time           `json:"-"`
	Lines       []Line              `json:"lines" validate:"dive"`
	Total       decimal.Decimal     `json:"total"`
	Paid        decimal.Decimal     `json:"paid"`
	Mode        posting.PaymentMode `json:"mode"`
	SupplierID  int64               `json:"supplier_id"`
}

// Outlay is an expense or a miscellaneous charge.
type Outlay struct {
	DocumentID  int64               `json:"document_id" validate:"gt=0"`
	PieceNumber string              `json:"piece_number"`
	Date        time.Time           `json:"-"`
	Label       string              `json:"label"`
	Total       decimal.Decimal     `json:"total"`
	Paid        decimal.Decimal     `json:"paid"`
	Mode        posting.PaymentMode `json:"mode"`
	SupplierID  int64               `json:"supplier_id"`
}

// BankOperation moves money between cash on hand and the bank.
type BankOperation struct {
	DocumentID  int64             `json:"document_id" validate:"gt=0"`
	PieceNumber string            `json:"piece_number"`
	Date        time.Time         `json:"-"`
	Label       string            `json:"label"`
	Amount      decimal.Decimal   `json:"amount"`
	Direction   posting.Direction `json:"direction"`
}

// Payment settles a client receivable or a supplier payable.
type Payment struct {
	DocumentID     int64               `json:"document_id" validate:"gt=0"`
	PieceNumber    string              `json:"piece_number"`
	Date           time.Time           `json:"-"`
	Amount         decimal.Decimal     `json:"amount"`
	Mode           posting.PaymentMode `json:"mode"`
	CounterpartyID int64               `json:"counterparty_id"`
}

// Result is what a completed document produced. Warnings hold posting failures;
// the document itself stands. Replayed marks a document whose stock effect was
// applied by an earlier completion.
type Result struct {
	Movements []inventory.Movement `json:"movements,omitempty"`
	Replayed  bool                 `json:"replayed,omitempty"`
	Warnings  []error              `json:"-"`
}

// Service composes the stock ledger and the posting queue.
type Service struct {
	stock  StockPort
	submit SubmitPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the document flow.
func NewService(stock StockPort, submit SubmitPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{stock: stock, submit: submit, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CompleteSale issues the sold quantities then queues the SALE posting.
func (s *Service) CompleteSale(ctx context.Context, actor shared.Actor, in Sale) (Result, error) {
	evt := posting.Event{
		Kind: posting.KindSale, DocumentID: in.DocumentID, PieceNumber: in.PieceNumber, Date: in.Date,
		Total: in.Total, Paid: in.Paid, Mode: in.Mode, CounterpartyID: in.ClientID,
	}
	return s.complete(ctx, actor, in, evt, in.Lines, s.stock.IssueDocument)
}

// CompletePurchase receives the bought quantities then queues the PURCHASE posting.
func (s *Service) CompletePurchase(ctx context.Context, actor shared.Actor, in Purchase) (Result, error) {
	evt := posting.Event{
		Kind: posting.KindPurchase, DocumentID: in.DocumentID, PieceNumber: in.PieceNumber, Date: in.Date,
		Total: in.Total, Paid: in.Paid, Mode: in.Mode, CounterpartyID: in.SupplierID,
	}
	return s.complete(ctx, actor, in, evt, in.Lines, s.stock.ReceiveDocument)
}

// RecordExpense queues the EXPENSE posting.
func (s *Service) RecordExpense(ctx context.Context, actor shared.Actor, in Outlay) (Result, error) {
	return s.complete(ctx, actor, in, outlayEvent(posting.KindExpense, in), nil, nil)
}

// RecordCharge queues the CHARGE posting.
func (s *Service) RecordCharge(ctx context.Context, actor shared.Actor, in Outlay) (Result, error) {
	return s.complete(ctx, actor, in, outlayEvent(posting.KindCharge, in), nil, nil)
}

// RecordBankOperation queues the BANK_OPERATION posting.
func (s *Service) RecordBankOperation(ctx context.Context, actor shared.Actor, in BankOperation) (Result, error) {
	evt := posting.Event{
		Kind: posting.KindBankOperation, DocumentID: in.DocumentID, PieceNumber: in.PieceNumber, Date: in.Date,
		Total: in.Amount, Direction: in.Direction, Label: in.Label,
	}
	return s.complete(ctx, actor, in, evt, nil, nil)
}

// RecordClientPayment queues the CLIENT_PAYMENT posting.
func (s *Service) RecordClientPayment(ctx context.Context, actor shared.Actor, in Payment) (Result, error) {
	return s.complete(ctx, actor, in, paymentEvent(posting.KindClientPayment, in), nil, nil)
}

// RecordSupplierPayment queues the SUPPLIER_PAYMENT posting.
func (s *Service) RecordSupplierPayment(ctx context.Context, actor shared.Actor, in Payment) (Result, error) {
	return s.complete(ctx, actor, in, paymentEvent(posting.KindSupplierPayment, in), nil, nil)
}

type stockFunc func(context.Context, inventory.DocumentStockInput) ([]inventory.Movement, error)

// complete validates everything up front so a rejected document mutates nothing,
// applies the stock effect, then queues the posting. Queue failures become warnings.
// Completing a document again re-queues its posting, which the queue deduplicates,
// but leaves stock untouched.
func (s *Service) complete(ctx context.Context, actor shared.Actor, in any, evt posting.Event, lines []Line, apply stockFunc) (Result, error) {
	if err := actor.Validate(); err != nil {
		return Result{}, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return Result{}, err
	}
	if evt.Date.IsZero() {
		evt.Date = s.now().UTC().Truncate(24 * time.Hour)
	}
	evt.EntityID = actor.EntityID
	evt.ActorID = actor.UserID
	if err := evt.Validate(); err != nil {
		return Result{}, err
	}

	var result Result
	if apply != nil && len(lines) > 0 {
		doc := inventory.DocumentStockInput{
			EntityID:  actor.EntityID,
			Key:       fmt.Sprintf("%s:%d", evt.Kind, evt.DocumentID),
			Reference: reference(evt),
			Date:      evt.Date,
			ActorID:   actor.UserID,
		}
		for _, l := range lines {
			doc.Lines = append(doc.Lines, inventory.DocumentLine{ProductID: l.ProductID, WarehouseID: l.WarehouseID, Quantity: l.Quantity})
		}
		movements, err := apply(ctx, doc)
		switch {
		case errors.Is(err, inventory.ErrDocumentApplied):
			s.logger.Info("document stock already applied",
				slog.String("kind", string(evt.Kind)),
				slog.Int64("document_id", evt.DocumentID))
			result.Replayed = true
		case err != nil:
			return Result{}, err
		default:
			result.Movements = movements
		}
	}

	if err := s.submit.Submit(ctx, evt); err != nil {
		s.logger.Warn("document committed without posting",
			slog.String("kind", string(evt.Kind)),
			slog.Int64("document_id", evt.DocumentID),
			slog.Any("error", err))
		result.Warnings = append(result.Warnings, err)
	}
	return result, nil
}

func reference(evt posting.Event) string {
	if evt.PieceNumber != "" {
		return evt.PieceNumber
	}
	return fmt.Sprintf("%s #%d", evt.Kind, evt.DocumentID)
}

func outlayEvent(kind posting.Kind, in Outlay) posting.Event {
	return posting.Event{
		Kind: kind, DocumentID: in.DocumentID, PieceNumber: in.PieceNumber, Date: in.Date, Label: in.Label,
		Total: in.Total, Paid: in.Paid, Mode: in.Mode, CounterpartyID: in.SupplierID,
	}
}

func paymentEvent(kind posting.Kind, in Payment) posting.Event {
	return posting.Event{
		Kind: kind, DocumentID: in.DocumentID, PieceNumber: in.PieceNumber, Date: in.Date,
		Total: in.Amount, Paid: in.Amount, Mode: in.Mode, CounterpartyID: in.CounterpartyID,
	}
}
