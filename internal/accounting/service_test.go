package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/chart"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	lines  map[int64]Line
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{lines: make(map[int64]Line)}
}

// WithTx serialises callers and rolls back on error by restoring a snapshot.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Line, len(r.lines))
	for id, line := range r.lines {
		snapshot[id] = line
	}
	next := r.nextID
	if err := fn(ctx, (*memoryTx)(r)); err != nil {
		r.lines = snapshot
		r.nextID = next
		return err
	}
	return nil
}

func (r *memoryRepo) ListLines(ctx context.Context, q LineQuery) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Line
	for _, line := range r.lines {
		if line.EntityID != q.EntityID {
			continue
		}
		if q.AccountNumber != "" && line.AccountNumber != q.AccountNumber {
			continue
		}
		if q.ReferenceType != "" && line.ReferenceType != q.ReferenceType {
			continue
		}
		out = append(out, line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) UnbalancedReferences(ctx context.Context, entityID int64) ([]UnbalancedReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sums := map[string]*UnbalancedReference{}
	for _, line := range r.lines {
		if line.EntityID != entityID || line.ReferenceType == ReferenceManual {
			continue
		}
		key := fmt.Sprintf("%s:%d", line.ReferenceType, line.ReferenceID)
		u, ok := sums[key]
		if !ok {
			u = &UnbalancedReference{ReferenceType: line.ReferenceType, ReferenceID: line.ReferenceID}
			sums[key] = u
		}
		u.Debit = u.Debit.Add(line.Debit)
		u.Credit = u.Credit.Add(line.Credit)
	}
	var out []UnbalancedReference
	for _, u := range sums {
		if !u.Debit.Equal(u.Credit) {
			out = append(out, *u)
		}
	}
	return out, nil
}

type memoryTx memoryRepo

func (t *memoryTx) LockReference(ctx context.Context, entityID int64, refType string, refID int64) error {
	return nil
}

func (t *memoryTx) ReferenceLines(ctx context.Context, entityID int64, refType string, refID int64) ([]Line, error) {
	var out []Line
	for _, line := range t.lines {
		if line.EntityID == entityID && line.ReferenceType == refType && line.ReferenceID == refID {
			out = append(out, line)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line Line) (Line, error) {
	t.nextID++
	line.ID = t.nextID
	line.Number = fmt.Sprintf("%s-%08d", line.JournalCode, line.ID)
	t.lines[line.ID] = line
	return line, nil
}

func (t *memoryTx) GetLineForUpdate(ctx context.Context, id int64) (Line, error) {
	line, ok := t.lines[id]
	if !ok {
		return Line{}, shared.NotFound("ledger line", id)
	}
	return line, nil
}

func (t *memoryTx) UpdateLine(ctx context.Context, line Line) (Line, error) {
	if _, ok := t.lines[line.ID]; !ok {
		return Line{}, shared.NotFound("ledger line", line.ID)
	}
	t.lines[line.ID] = line
	return line, nil
}

func (t *memoryTx) DeleteLine(ctx context.Context, id int64) error {
	if _, ok := t.lines[id]; !ok {
		return shared.NotFound("ledger line", id)
	}
	delete(t.lines, id)
	return nil
}

type memoryChart struct{}

func (memoryChart) Account(ctx context.Context, entityID int64, number string) (chart.Account, error) {
	switch number {
	case "571":
		return chart.Account{ID: 1, EntityID: entityID, Number: "571", Type: chart.AccountTypeAsset, Active: true}, nil
	case "701":
		return chart.Account{ID: 2, EntityID: entityID, Number: "701", Type: chart.AccountTypeRevenue, Active: true}, nil
	case "999":
		return chart.Account{ID: 9, EntityID: entityID, Number: "999", Active: false}, nil
	}
	return chart.Account{}, shared.NotFound("account", number)
}

func (memoryChart) JournalByCode(ctx context.Context, entityID int64, code string) (chart.Journal, error) {
	if code == "OD" {
		return chart.Journal{ID: 5, EntityID: entityID, Code: "OD", Kind: chart.JournalMisc}, nil
	}
	return chart.Journal{}, shared.NotFound("journal", code)
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context, entityID int64) error {
	c.calls++
	return nil
}

func saleDocument(amount string) DocumentInput {
	amt := decimal.RequireFromString(amount)
	return DocumentInput{
		EntityID:      1,
		ReferenceType: "SALE",
		ReferenceID:   42,
		Date:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		JournalID:     2,
		JournalCode:   "VT",
		Reference:     "FAC-42",
		PostedBy:      7,
		Lines: []LineInput{
			{AccountID: 1, AccountNumber: "571", Label: "Vente FAC-42", Debit: amt},
			{AccountID: 2, AccountNumber: "701", Label: "Vente FAC-42", Credit: amt},
		},
	}
}

func newTestService() (*Service, *memoryRepo, *recordingAudit, *countingInvalidator) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	inv := &countingInvalidator{}
	svc := NewService(repo, memoryChart{}, audit, inv)
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC) })
	return svc, repo, audit, inv
}

func TestPostDocumentPersistsBalancedLines(t *testing.T) {
	svc, _, audit, inv := newTestService()
	lines, err := svc.PostDocument(context.Background(), saleDocument("1000"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	debit, credit := Totals(lines)
	require.True(t, debit.Equal(credit))
	require.Equal(t, "VT-00000001", lines[0].Number)
	for _, line := range lines {
		require.Equal(t, "SALE", line.ReferenceType)
		require.Equal(t, int64(42), line.ReferenceID)
	}
	require.Equal(t, 1, inv.calls)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "ledger.post", audit.logs[0].Action)
}

func TestPostDocumentIsInsertIfAbsent(t *testing.T) {
	svc, repo, _, inv := newTestService()
	ctx := context.Background()
	first, err := svc.PostDocument(ctx, saleDocument("1000"))
	require.NoError(t, err)

	second, err := svc.PostDocument(ctx, saleDocument("1000"))
	require.ErrorIs(t, err, ErrAlreadyPosted)
	require.True(t, IsAlreadyPosted(err))
	require.Equal(t, first, second)
	require.Len(t, repo.lines, 2)
	require.Equal(t, 1, inv.calls)
}

func TestPostDocumentConcurrentDuplicatesWriteOnce(t *testing.T) {
	svc, repo, _, _ := newTestService()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PostDocument(context.Background(), saleDocument("250"))
		}(i)
	}
	wg.Wait()
	var fresh int
	for _, err := range errs {
		if err == nil {
			fresh++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyPosted)
	}
	require.Equal(t, 1, fresh)
	require.Len(t, repo.lines, 2)
}

func TestPostDocumentRejectsInvalidDocuments(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	unbalanced := saleDocument("100")
	unbalanced.Lines[1].Credit = decimal.NewFromInt(90)
	_, err := svc.PostDocument(ctx, unbalanced)
	require.ErrorIs(t, err, ErrUnbalanced)

	single := saleDocument("100")
	single.Lines = single.Lines[:1]
	_, err = svc.PostDocument(ctx, single)
	require.ErrorIs(t, err, ErrTooFewLines)

	bothSides := saleDocument("100")
	bothSides.Lines[0].Credit = decimal.NewFromInt(1)
	_, err = svc.PostDocument(ctx, bothSides)
	require.ErrorIs(t, err, shared.ErrValidation)

	zero := saleDocument("0")
	_, err = svc.PostDocument(ctx, zero)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.PostDocument(ctx, saleDocument("10.005"))
	require.ErrorIs(t, err, shared.ErrValidation)

	require.Empty(t, repo.lines)
}

func TestManualLineLifecycle(t *testing.T) {
	svc, repo, audit, _ := newTestService()
	ctx := context.Background()
	actor := shared.Actor{EntityID: 1, UserID: 3}

	line, err := svc.CreateManualLine(ctx, actor, ManualLineInput{
		JournalCode:   "OD",
		AccountNumber: "571",
		Label:         "Correction caisse",
		Debit:         decimal.NewFromInt(15),
	})
	require.NoError(t, err)
	require.Equal(t, ReferenceManual, line.ReferenceType)
	require.Equal(t, int64(3), line.PostedBy)
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), line.Date)

	updated, err := svc.UpdateManualLine(ctx, actor, line.ID, ManualLineInput{
		JournalCode:   "OD",
		AccountNumber: "701",
		Label:         "Correction vente",
		Credit:        decimal.NewFromInt(15),
	})
	require.NoError(t, err)
	require.Equal(t, "701", updated.AccountNumber)
	require.True(t, updated.Debit.IsZero())
	require.Equal(t, ReferenceManual, updated.ReferenceType)

	require.NoError(t, svc.DeleteManualLine(ctx, actor, line.ID))
	require.Empty(t, repo.lines)
	require.Len(t, audit.logs, 3)

	err = svc.DeleteManualLine(ctx, actor, line.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestManualLineRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	actor := shared.Actor{EntityID: 1, UserID: 3}

	_, err := svc.CreateManualLine(ctx, actor, ManualLineInput{JournalCode: "OD", AccountNumber: "571", Label: "x",
		Debit: decimal.NewFromInt(1), Credit: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateManualLine(ctx, actor, ManualLineInput{JournalCode: "OD", AccountNumber: "571",
		Debit: decimal.NewFromInt(1)})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "manuallineinput.label", verr.Field)

	_, err = svc.CreateManualLine(ctx, actor, ManualLineInput{JournalCode: "OD", AccountNumber: "999", Label: "x",
		Debit: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateManualLine(ctx, actor, ManualLineInput{JournalCode: "OD", AccountNumber: "404", Label: "x",
		Debit: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.CreateManualLine(ctx, actor, ManualLineInput{JournalCode: "OD", AccountNumber: "571", Label: "x",
		Debit: decimal.RequireFromString("0.004")})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateManualLine(ctx, shared.Actor{}, ManualLineInput{})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestManualEditOfForeignEntityIsForbidden(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	posted, err := svc.PostDocument(ctx, saleDocument("500"))
	require.NoError(t, err)

	intruder := shared.Actor{EntityID: 2, UserID: 9}
	_, err = svc.UpdateManualLine(ctx, intruder, posted[0].ID, ManualLineInput{
		JournalCode: "OD", AccountNumber: "571", Label: "x", Debit: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, shared.ErrAuthorization)
	require.ErrorIs(t, svc.DeleteManualLine(ctx, intruder, posted[0].ID), shared.ErrAuthorization)
	require.Len(t, repo.lines, 2)
	require.True(t, repo.lines[posted[0].ID].Debit.Equal(decimal.NewFromInt(500)))
}

func TestManualEditCanUnbalanceAPostedDocument(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	actor := shared.Actor{EntityID: 1, UserID: 3}
	posted, err := svc.PostDocument(ctx, saleDocument("500"))
	require.NoError(t, err)

	_, err = svc.UpdateManualLine(ctx, actor, posted[0].ID, ManualLineInput{
		JournalCode: "OD", AccountNumber: "571", Label: "Ajustement", Debit: decimal.NewFromInt(450),
	})
	require.NoError(t, err)

	broken, err := svc.CheckIntegrity(ctx, 1)
	require.NoError(t, err)
	require.Len(t, broken, 1)
	require.Equal(t, "SALE", broken[0].ReferenceType)
	require.True(t, broken[0].Debit.Equal(decimal.NewFromInt(450)))
	require.True(t, broken[0].Credit.Equal(decimal.NewFromInt(500)))
}

func TestListLinesIsScopedToActorEntity(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.PostDocument(ctx, saleDocument("100"))
	require.NoError(t, err)

	lines, err := svc.ListLines(ctx, shared.Actor{EntityID: 1}, LineQuery{EntityID: 2, AccountNumber: "701"})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	lines, err = svc.ListLines(ctx, shared.Actor{EntityID: 2}, LineQuery{})
	require.NoError(t, err)
	require.Empty(t, lines)

	_, err = svc.ListLines(ctx, shared.Actor{EntityID: 1}, LineQuery{
		From: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLineFilterRendersPositionalArguments(t *testing.T) {
	where, args := lineFilter(LineQuery{EntityID: 1, JournalCode: "VT", AccountNumber: "571", ReferenceID: 4})
	require.Equal(t, " WHERE l.entity_id=$1 AND j.code = $2 AND a.number = $3 AND l.reference_id = $4", where)
	require.Equal(t, []any{int64(1), "VT", "571", int64(4)}, args)
}
