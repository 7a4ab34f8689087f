package posting

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// SweepOptions narrows a backfill run.
type SweepOptions struct {
	Kinds []Kind
	Batch int
}

// KindReport counts the documents of one kind handled by a sweep.
type KindReport struct {
	Scanned int `json:"scanned"`
	Posted  int `json:"posted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// SweepReport aggregates a backfill run.
type SweepReport struct {
	EntityID int64               `json:"entity_id"`
	Kinds    map[Kind]KindReport `json:"kinds"`
	Warnings []error             `json:"-"`
}

// Totals sums the per-kind counters.
func (r SweepReport) Totals() KindReport {
	var total KindReport
	for _, k := range r.Kinds {
		total.Scanned += k.Scanned
		total.Posted += k.Posted
		total.Skipped += k.Skipped
		total.Failed += k.Failed
	}
	return total
}

// Backfill posts historical documents that never reached the ledger.
type Backfill struct {
	source DocumentSource
	poster Poster
	logger *slog.Logger
}

// NewBackfill constructs a Backfill.
func NewBackfill(source DocumentSource, poster Poster, logger *slog.Logger) *Backfill {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfill{source: source, poster: poster, logger: logger}
}

// Sweep scans each kind concurrently and posts every unposted document. Running
// it twice posts nothing the second time.
func (b *Backfill) Sweep(ctx context.Context, entityID int64, opts SweepOptions) (SweepReport, error) {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	batch := opts.Batch
	if batch <= 0 {
		batch = 500
	}
	report := SweepReport{EntityID: entityID, Kinds: make(map[Kind]KindReport, len(kinds))}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			kr, warnings, err := b.sweepKind(ctx, entityID, kind, batch)
			mu.Lock()
			report.Kinds[kind] = kr
			report.Warnings = append(report.Warnings, warnings...)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	totals := report.Totals()
	b.logger.Info("backfill sweep finished",
		slog.Int64("entity_id", entityID),
		slog.Int("scanned", totals.Scanned),
		slog.Int("posted", totals.Posted),
		slog.Int("failed", totals.Failed))
	return report, err
}

func (b *Backfill) sweepKind(ctx context.Context, entityID int64, kind Kind, batch int) (KindReport, []error, error) {
	var (
		kr       KindReport
		warnings []error
		afterID  int64
	)
	for {
		events, err := b.source.Unposted(ctx, entityID, kind, afterID, batch)
		if err != nil {
			return kr, warnings, err
		}
		for _, evt := range events {
			afterID = evt.DocumentID
			kr.Scanned++
			if kind == KindTransfer && !evt.Total.Round(shared.MoneyScale).IsPositive() {
				kr.Skipped++
				continue
			}
			result, err := b.poster.Post(ctx, evt)
			switch {
			case err != nil:
				kr.Failed++
				warnings = append(warnings, err)
				b.logger.Warn("backfill posting failed",
					slog.String("kind", string(kind)),
					slog.Int64("document_id", evt.DocumentID),
					slog.Any("error", err))
			case result.Duplicate:
				kr.Skipped++
			default:
				kr.Posted++
			}
		}
		if len(events) < batch {
			return kr, warnings, nil
		}
	}
}
