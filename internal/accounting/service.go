package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/backoffice/internal/chart"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort abstracts ledger storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListLines(ctx context.Context, q LineQuery) ([]Line, error)
	UnbalancedReferences(ctx context.Context, entityID int64) ([]UnbalancedReference, error)
}

// ChartPort resolves accounts and journals for the manual-entry path.
type ChartPort interface {
	Account(ctx context.Context, entityID int64, number string) (chart.Account, error)
	JournalByCode(ctx context.Context, entityID int64, code string) (chart.Journal, error)
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops read models derived from the ledger of an entity.
type Invalidator interface {
	Invalidate(ctx context.Context, entityID int64) error
}

// Service is the append-mostly store of posted lines.
type Service struct {
	repo        RepositoryPort
	chart       ChartPort
	audit       AuditPort
	invalidator Invalidator
	now         func() time.Time
}

// NewService constructs the ledger service. audit and invalidator may be nil.
func NewService(repo RepositoryPort, chartPort ChartPort, audit AuditPort, invalidator Invalidator) *Service {
	return &Service{repo: repo, chart: chartPort, audit: audit, invalidator: invalidator, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostDocument persists the balanced lines of one document unless lines already
// exist for its reference key, in which case the stored lines are returned along
// with ErrAlreadyPosted.
func (s *Service) PostDocument(ctx context.Context, in DocumentInput) ([]Line, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var posted []Line
	var duplicate bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockReference(ctx, in.EntityID, in.ReferenceType, in.ReferenceID); err != nil {
			return err
		}
		existing, err := tx.ReferenceLines(ctx, in.EntityID, in.ReferenceType, in.ReferenceID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			posted = existing
			duplicate = true
			return nil
		}
		posted = make([]Line, 0, len(in.Lines))
		for _, li := range in.Lines {
			line, err := tx.InsertLine(ctx, Line{
				EntityID:      in.EntityID,
				Date:          in.Date,
				JournalID:     in.JournalID,
				JournalCode:   in.JournalCode,
				PieceNumber:   in.PieceNumber,
				Label:         li.Label,
				AccountID:     li.AccountID,
				AccountNumber: li.AccountNumber,
				Debit:         li.Debit,
				Credit:        li.Credit,
				Reference:     in.Reference,
				ReferenceType: in.ReferenceType,
				ReferenceID:   in.ReferenceID,
				PostedBy:      in.PostedBy,
			})
			if err != nil {
				return err
			}
			posted = append(posted, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return posted, ErrAlreadyPosted
	}
	s.afterChange(ctx, in.EntityID, shared.AuditLog{
		EntityID: in.EntityID,
		ActorID:  in.PostedBy,
		Action:   "ledger.post",
		Object:   "ledger_document",
		ObjectID: fmt.Sprintf("%s:%d", in.ReferenceType, in.ReferenceID),
		Meta: map[string]any{
			"journal": in.JournalCode,
			"lines":   len(posted),
		},
	})
	return posted, nil
}

// CreateManualLine writes a single operator line. Cross-line balance is not enforced.
func (s *Service) CreateManualLine(ctx context.Context, actor shared.Actor, in ManualLineInput) (Line, error) {
	if err := actor.Validate(); err != nil {
		return Line{}, err
	}
	line, err := s.resolveManual(ctx, actor, in)
	if err != nil {
		return Line{}, err
	}
	line.ReferenceType = ReferenceManual
	line.ReferenceID = in.ReferenceID
	line.PostedBy = actor.UserID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		line, err = tx.InsertLine(ctx, line)
		return err
	})
	if err != nil {
		return Line{}, err
	}
	s.afterChange(ctx, actor.EntityID, manualAudit(actor, "ledger.manual.create", line))
	return line, nil
}

// UpdateManualLine edits any line of the actor's entity, including engine-posted ones.
// Reference type and id are kept.
func (s *Service) UpdateManualLine(ctx context.Context, actor shared.Actor, id int64, in ManualLineInput) (Line, error) {
	if err := actor.Validate(); err != nil {
		return Line{}, err
	}
	resolved, err := s.resolveManual(ctx, actor, in)
	if err != nil {
		return Line{}, err
	}
	var updated Line
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetLineForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.Owns(current.EntityID); err != nil {
			return err
		}
		current.Date = resolved.Date
		current.JournalID = resolved.JournalID
		current.JournalCode = resolved.JournalCode
		current.PieceNumber = resolved.PieceNumber
		current.Label = resolved.Label
		current.AccountID = resolved.AccountID
		current.AccountNumber = resolved.AccountNumber
		current.Debit = resolved.Debit
		current.Credit = resolved.Credit
		current.Reference = resolved.Reference
		updated, err = tx.UpdateLine(ctx, current)
		return err
	})
	if err != nil {
		return Line{}, err
	}
	s.afterChange(ctx, actor.EntityID, manualAudit(actor, "ledger.manual.update", updated))
	return updated, nil
}

// DeleteManualLine removes a line of the actor's entity.
func (s *Service) DeleteManualLine(ctx context.Context, actor shared.Actor, id int64) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	var deleted Line
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetLineForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.Owns(current.EntityID); err != nil {
			return err
		}
		deleted = current
		return tx.DeleteLine(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterChange(ctx, actor.EntityID, manualAudit(actor, "ledger.manual.delete", deleted))
	return nil
}

// ListLines queries the lines of the actor's entity.
func (s *Service) ListLines(ctx context.Context, actor shared.Actor, q LineQuery) ([]Line, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, shared.Validation("to", "must not precede from")
	}
	q.EntityID = actor.EntityID
	return s.repo.ListLines(ctx, q)
}

// CheckIntegrity lists posted documents of entityID whose lines do not balance.
func (s *Service) CheckIntegrity(ctx context.Context, entityID int64) ([]UnbalancedReference, error) {
	if entityID <= 0 {
		return nil, shared.Validation("entity", "is required")
	}
	return s.repo.UnbalancedReferences(ctx, entityID)
}

func (s *Service) resolveManual(ctx context.Context, actor shared.Actor, in ManualLineInput) (Line, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Line{}, err
	}
	if err := CheckAmounts(in.Debit, in.Credit); err != nil {
		return Line{}, err
	}
	if in.Date.IsZero() {
		in.Date = s.now().UTC().Truncate(24 * time.Hour)
	}
	journal, err := s.chart.JournalByCode(ctx, actor.EntityID, in.JournalCode)
	if err != nil {
		return Line{}, err
	}
	account, err := s.chart.Account(ctx, actor.EntityID, in.AccountNumber)
	if err != nil {
		return Line{}, err
	}
	if !account.Active {
		return Line{}, shared.Validation("account", "%s is inactive", account.Number)
	}
	return Line{
		EntityID:      actor.EntityID,
		Date:          in.Date,
		JournalID:     journal.ID,
		JournalCode:   journal.Code,
		PieceNumber:   in.PieceNumber,
		Label:         in.Label,
		AccountID:     account.ID,
		AccountNumber: account.Number,
		Debit:         in.Debit,
		Credit:        in.Credit,
		Reference:     in.Reference,
	}, nil
}

func (s *Service) afterChange(ctx context.Context, entityID int64, log shared.AuditLog) {
	if s.invalidator != nil {
		_ = s.invalidator.Invalidate(ctx, entityID)
	}
	if s.audit != nil {
		log.At = s.now()
		_ = s.audit.Record(ctx, log)
	}
}

func manualAudit(actor shared.Actor, action string, line Line) shared.AuditLog {
	return shared.AuditLog{
		EntityID: actor.EntityID,
		ActorID:  actor.UserID,
		Action:   action,
		Object:   "ledger_line",
		ObjectID: fmt.Sprintf("%d", line.ID),
		Meta: map[string]any{
			"number":  line.Number,
			"account": line.AccountNumber,
			"debit":   line.Debit.String(),
			"credit":  line.Credit.String(),
		},
	}
}

// IsAlreadyPosted reports whether err signals a duplicate posting.
func IsAlreadyPosted(err error) bool {
	return errors.Is(err, ErrAlreadyPosted)
}
