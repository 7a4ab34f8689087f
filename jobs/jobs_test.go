package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/accounting"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/posting"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newMetrics(t *testing.T) (*jobmetrics.Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return jobmetrics.NewMetrics(reg), reg
}

// sample reads one series value from the registry, keyed by metric name and label values.
func sample(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

type scriptedDrainer struct {
	reports []posting.DrainReport
	err     error
	limits  []int
}

func (d *scriptedDrainer) Drain(_ context.Context, limit int) (posting.DrainReport, error) {
	d.limits = append(d.limits, limit)
	if d.err != nil {
		return posting.DrainReport{}, d.err
	}
	if len(d.reports) == 0 {
		return posting.DrainReport{}, nil
	}
	r := d.reports[0]
	d.reports = d.reports[1:]
	return r, nil
}

func TestPostingDrainLoopsWhileBatchesAreFull(t *testing.T) {
	drainer := &scriptedDrainer{reports: []posting.DrainReport{
		{Claimed: 2, Posted: 2},
		{Claimed: 2, Posted: 1, Failed: 1, Warnings: []error{errors.New("missing 701")}},
		{Claimed: 1, Duplicates: 1},
	}}
	metrics, reg := newMetrics(t)
	job := NewPostingDrainJob(drainer, 2, quietLogger(), metrics)

	task, err := NewDrainTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int{2, 2, 2}, drainer.limits)
	require.Equal(t, float64(1), sample(t, reg, "backoffice_jobs_total", map[string]string{"job": TaskPostingDrain, "status": "success"}))

	drainer.reports = []posting.DrainReport{{Claimed: 1, Posted: 1}}
	report, err := job.Run(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 1, report.Posted)
	require.Equal(t, 5, drainer.limits[len(drainer.limits)-1])
}

func TestPostingDrainRecordsFailure(t *testing.T) {
	drainer := &scriptedDrainer{err: errors.New("db down")}
	metrics, reg := newMetrics(t)
	job := NewPostingDrainJob(drainer, 10, quietLogger(), metrics)

	_, err := job.Run(context.Background(), 0)
	require.ErrorContains(t, err, "db down")
	require.Equal(t, float64(1), sample(t, reg, "backoffice_jobs_failures_total", map[string]string{"job": TaskPostingDrain}))
}

func TestDrainHandlerRejectsMalformedPayload(t *testing.T) {
	job := NewPostingDrainJob(&scriptedDrainer{}, 10, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskPostingDrain, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type recordingSweeper struct {
	calls map[int64]posting.SweepOptions
	fail  int64
}

func (s *recordingSweeper) Sweep(_ context.Context, entityID int64, opts posting.SweepOptions) (posting.SweepReport, error) {
	if s.calls == nil {
		s.calls = map[int64]posting.SweepOptions{}
	}
	s.calls[entityID] = opts
	if entityID == s.fail {
		return posting.SweepReport{EntityID: entityID}, errors.New("sweep failed")
	}
	return posting.SweepReport{EntityID: entityID, Kinds: map[posting.Kind]posting.KindReport{posting.KindSale: {Scanned: 1, Posted: 1}}}, nil
}

type staticEntities []int64

func (e staticEntities) EntityIDs(context.Context) ([]int64, error) { return e, nil }

func TestLedgerBackfillSweepsEveryEntity(t *testing.T) {
	sweeper := &recordingSweeper{}
	metrics, _ := newMetrics(t)
	job := NewLedgerBackfillJob(sweeper, staticEntities{1, 2}, 250, quietLogger(), metrics)

	task, err := NewBackfillTask(0, []string{"sale", "EXPENSE"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, sweeper.calls, 2)
	require.Equal(t, posting.SweepOptions{Kinds: []posting.Kind{posting.KindSale, posting.KindExpense}, Batch: 250}, sweeper.calls[2])
}

func TestLedgerBackfillSingleEntityAndErrors(t *testing.T) {
	sweeper := &recordingSweeper{fail: 7}
	job := NewLedgerBackfillJob(sweeper, nil, 0, quietLogger(), nil)

	reports, err := job.Run(context.Background(), BackfillPayload{EntityID: 3})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, 1, reports[0].Totals().Posted)

	_, err = job.Run(context.Background(), BackfillPayload{EntityID: 7})
	require.ErrorContains(t, err, "sweep failed")

	_, err = job.Run(context.Background(), BackfillPayload{EntityID: 3, Kinds: []string{"REFUND"}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, err = job.Run(context.Background(), BackfillPayload{})
	require.ErrorContains(t, err, "entity lister")
}

type stubChecker map[int64][]accounting.UnbalancedReference

func (s stubChecker) CheckIntegrity(_ context.Context, entityID int64) ([]accounting.UnbalancedReference, error) {
	return s[entityID], nil
}

func TestGLIntegrityExportsUnbalancedCounts(t *testing.T) {
	checker := stubChecker{2: {{
		ReferenceType: "SALE", ReferenceID: 9,
		Debit: decimal.RequireFromString("100"), Credit: decimal.RequireFromString("90"),
	}}}
	metrics, reg := newMetrics(t)
	job := NewGLIntegrityJob(checker, staticEntities{1, 2}, quietLogger(), metrics)

	found, err := job.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, int64(9), found[2][0].ReferenceID)
	require.Equal(t, float64(1), sample(t, reg, "backoffice_ledger_unbalanced_documents", map[string]string{"entity": "2"}))
	require.Equal(t, float64(0), sample(t, reg, "backoffice_ledger_unbalanced_documents", map[string]string{"entity": "1"}))

	task, err := NewIntegrityTask(1)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}
