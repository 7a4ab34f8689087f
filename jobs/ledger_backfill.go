package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/posting"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Sweeper posts unposted documents of one entity.
type Sweeper interface {
	Sweep(ctx context.Context, entityID int64, opts posting.SweepOptions) (posting.SweepReport, error)
}

// EntityLister enumerates the entities maintenance jobs iterate over.
type EntityLister interface {
	EntityIDs(ctx context.Context) ([]int64, error)
}

// LedgerBackfillJob runs the backfill sweep for one or every entity.
type LedgerBackfillJob struct {
	sweeper  Sweeper
	entities EntityLister
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
	batch    int
}

// NewLedgerBackfillJob initialises the backfill handler.
func NewLedgerBackfillJob(sweeper Sweeper, entities EntityLister, batch int, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerBackfillJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerBackfillJob{sweeper: sweeper, entities: entities, logger: logger, metrics: metrics, batch: batch}
}

// Handle executes TaskLedgerBackfill.
func (j *LedgerBackfillJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.sweeper == nil {
		return errors.New("ledger backfill: handler not configured")
	}
	var payload BackfillPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run sweeps the requested entities and returns one report per entity.
func (j *LedgerBackfillJob) Run(ctx context.Context, payload BackfillPayload) ([]posting.SweepReport, error) {
	tracker := j.metrics.Track(TaskLedgerBackfill)
	opts := posting.SweepOptions{Batch: j.batch}
	for _, k := range payload.Kinds {
		kind := posting.Kind(strings.ToUpper(k))
		if !kind.Valid() {
			return nil, tracker.End(errors.Join(asynq.SkipRetry, shared.Validation("kinds", "unknown kind %q", k)))
		}
		opts.Kinds = append(opts.Kinds, kind)
	}
	entities, err := targetEntities(ctx, j.entities, payload.EntityID)
	if err != nil {
		return nil, tracker.End(err)
	}
	reports := make([]posting.SweepReport, 0, len(entities))
	for _, entityID := range entities {
		report, err := j.sweeper.Sweep(ctx, entityID, opts)
		reports = append(reports, report)
		if err != nil {
			j.logger.Error("ledger backfill failed", slog.Int64("entity_id", entityID), slog.Any("error", err))
			return reports, tracker.End(err)
		}
	}
	return reports, tracker.End(nil)
}

func targetEntities(ctx context.Context, lister EntityLister, entityID int64) ([]int64, error) {
	if entityID > 0 {
		return []int64{entityID}, nil
	}
	if lister == nil {
		return nil, errors.New("jobs: entity lister not configured")
	}
	return lister.EntityIDs(ctx)
}
