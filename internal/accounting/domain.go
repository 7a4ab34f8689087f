package accounting

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// ReferenceManual tags lines written through the manual-entry path.
const ReferenceManual = "MANUAL"

// Line is one debit-or-credit row of the ledger.
type Line struct {
	ID            int64           `json:"id"`
	EntityID      int64           `json:"entity_id"`
	Number        string          `json:"number"`
	Date          time.Time       `json:"date"`
	JournalID     int64           `json:"journal_id"`
	JournalCode   string          `json:"journal_code"`
	PieceNumber   string          `json:"piece_number,omitempty"`
	Label         string          `json:"label"`
	AccountID     int64           `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Reference     string          `json:"reference,omitempty"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   int64           `json:"reference_id"`
	PostedBy      int64           `json:"posted_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LineInput describes a line of a document to post.
type LineInput struct {
	AccountID     int64
	AccountNumber string
	Label         string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// DocumentInput groups the lines posted under one (reference type, reference id).
type DocumentInput struct {
	EntityID      int64
	ReferenceType string
	ReferenceID   int64
	Date          time.Time
	JournalID     int64
	JournalCode   string
	PieceNumber   string
	Reference     string
	PostedBy      int64
	Lines         []LineInput
}

// ManualLineInput describes a line created or edited by an operator.
type ManualLineInput struct {
	Date          time.Time
	JournalCode   string `validate:"required"`
	AccountNumber string `validate:"required"`
	PieceNumber   string
	Label         string `validate:"required"`
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	Reference     string
	ReferenceID   int64 `validate:"gte=0"`
}

// LineQuery filters ledger lines. Zero values disable a filter.
type LineQuery struct {
	EntityID      int64
	From          time.Time
	To            time.Time
	JournalCode   string
	AccountNumber string
	ReferenceType string
	ReferenceID   int64
	Limit         int
}

// UnbalancedReference is a posted document whose lines do not balance.
type UnbalancedReference struct {
	ReferenceType string
	ReferenceID   int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

var (
	// ErrAlreadyPosted indicates the reference key already has lines.
	ErrAlreadyPosted = errors.New("accounting: reference already posted")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = &shared.ValidationError{Field: "lines", Reason: "debit and credit totals differ"}
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = &shared.ValidationError{Field: "lines", Reason: "at least two lines required"}
)

// CheckAmounts enforces that exactly one side of a line is strictly positive.
func CheckAmounts(debit, credit decimal.Decimal) error {
	if debit.IsNegative() || credit.IsNegative() {
		return shared.Validation("amount", "must not be negative")
	}
	if err := shared.CheckScale("amount", debit, shared.MoneyScale); err != nil {
		return err
	}
	if err := shared.CheckScale("amount", credit, shared.MoneyScale); err != nil {
		return err
	}
	if debit.IsPositive() == credit.IsPositive() {
		return shared.Validation("amount", "exactly one of debit or credit must be positive")
	}
	return nil
}

// Validate ensures the document is postable.
func (in DocumentInput) Validate() error {
	if in.EntityID <= 0 {
		return shared.Validation("entity", "is required")
	}
	if in.ReferenceType == "" || in.ReferenceID <= 0 {
		return shared.Validation("reference", "type and id required")
	}
	if in.JournalID <= 0 {
		return shared.Validation("journal", "is required")
	}
	if in.Date.IsZero() {
		return shared.Validation("date", "is required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		if line.AccountID <= 0 {
			return shared.Validation("lines.account", "is required")
		}
		if err := CheckAmounts(line.Debit, line.Credit); err != nil {
			return err
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	return nil
}

// Totals sums the debit and credit sides of lines.
func Totals(lines []Line) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}
