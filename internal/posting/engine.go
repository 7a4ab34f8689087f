package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/backoffice/internal/accounting"
	"github.com/odyssey-erp/backoffice/internal/chart"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// ChartPort resolves the accounts and journals the rules name.
type ChartPort interface {
	Account(ctx context.Context, entityID int64, number string) (chart.Account, error)
	Journal(ctx context.Context, entityID int64, kind chart.JournalKind) (chart.Journal, error)
}

// LedgerPort persists balanced documents.
type LedgerPort interface {
	PostDocument(ctx context.Context, in accounting.DocumentInput) ([]accounting.Line, error)
}

// Result reports the lines stored under the event key.
type Result struct {
	Lines     []accounting.Line
	Duplicate bool
}

// Engine computes and persists the ledger document of an event.
type Engine struct {
	rules  Rules
	chart  ChartPort
	ledger LedgerPort
}

// NewEngine constructs the posting engine.
func NewEngine(rules Rules, chartPort ChartPort, ledger LedgerPort) *Engine {
	return &Engine{rules: rules, chart: chartPort, ledger: ledger}
}

// Post persists the balanced lines of evt under (evt.Kind, evt.DocumentID). A
// document already posted is returned with Duplicate set and no error.
func (e *Engine) Post(ctx context.Context, evt Event) (Result, error) {
	evt.Total = evt.Total.Round(shared.MoneyScale)
	evt.Paid = evt.Paid.Round(shared.MoneyScale)
	if err := evt.Validate(); err != nil {
		return Result{}, err
	}
	doc, err := e.Document(ctx, evt)
	if err != nil {
		return Result{}, err
	}
	lines, err := e.ledger.PostDocument(ctx, doc)
	if err != nil {
		if accounting.IsAlreadyPosted(err) {
			return Result{Lines: lines, Duplicate: true}, nil
		}
		return Result{}, err
	}
	return Result{Lines: lines}, nil
}

// Document resolves the planned lines of evt against the chart.
func (e *Engine) Document(ctx context.Context, evt Event) (accounting.DocumentInput, error) {
	p, err := e.rules.Plan(evt)
	if err != nil {
		return accounting.DocumentInput{}, err
	}
	journal, err := e.chart.Journal(ctx, evt.EntityID, p.Journal)
	if err != nil {
		return accounting.DocumentInput{}, configuration("journal", string(p.Journal), err)
	}
	doc := accounting.DocumentInput{
		EntityID:      evt.EntityID,
		ReferenceType: string(evt.Kind),
		ReferenceID:   evt.DocumentID,
		Date:          evt.Date,
		JournalID:     journal.ID,
		JournalCode:   journal.Code,
		PieceNumber:   evt.PieceNumber,
		PostedBy:      evt.ActorID,
		Lines:         make([]accounting.LineInput, 0, len(p.Lines)),
	}
	if evt.CounterpartyID > 0 {
		doc.Reference = fmt.Sprintf("tiers:%d", evt.CounterpartyID)
	}
	accounts := make(map[string]chart.Account, len(p.Lines))
	for _, pl := range p.Lines {
		account, ok := accounts[pl.Number]
		if !ok {
			account, err = e.chart.Account(ctx, evt.EntityID, pl.Number)
			if err != nil {
				return accounting.DocumentInput{}, configuration("account", pl.Number, err)
			}
			if !account.Active {
				return accounting.DocumentInput{}, &shared.ConfigurationError{Kind: "account", Key: pl.Number, Err: errors.New("account is inactive")}
			}
			accounts[pl.Number] = account
		}
		doc.Lines = append(doc.Lines, accounting.LineInput{
			AccountID:     account.ID,
			AccountNumber: account.Number,
			Label:         pl.Label,
			Debit:         pl.Debit,
			Credit:        pl.Credit,
		})
	}
	return doc, nil
}

// configuration reports missing reference data as a ConfigurationError and
// passes other lookup failures through.
func configuration(kind, key string, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return &shared.ConfigurationError{Kind: kind, Key: key, Err: err}
	}
	return err
}
