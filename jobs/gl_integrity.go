package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/backoffice/internal/accounting"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
)

// IntegrityChecker lists unbalanced posted documents of an entity.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, entityID int64) ([]accounting.UnbalancedReference, error)
}

// GLIntegrityJob verifies that every posted document still balances.
type GLIntegrityJob struct {
	checker  IntegrityChecker
	entities EntityLister
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewGLIntegrityJob initialises the integrity handler.
func NewGLIntegrityJob(checker IntegrityChecker, entities EntityLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &GLIntegrityJob{checker: checker, entities: entities, logger: logger, metrics: metrics}
}

// Handle executes TaskGLIntegrity.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.checker == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	_, err := j.Run(ctx, payload.EntityID)
	return err
}

// Run checks the requested entities. Unbalanced documents are logged and exported
// as a gauge; they do not fail the job.
func (j *GLIntegrityJob) Run(ctx context.Context, entityID int64) (map[int64][]accounting.UnbalancedReference, error) {
	tracker := j.metrics.Track(TaskGLIntegrity)
	entities, err := targetEntities(ctx, j.entities, entityID)
	if err != nil {
		return nil, tracker.End(err)
	}
	found := make(map[int64][]accounting.UnbalancedReference, len(entities))
	for _, id := range entities {
		refs, err := j.checker.CheckIntegrity(ctx, id)
		if err != nil {
			return found, tracker.End(err)
		}
		j.metrics.SetUnbalanced(id, len(refs))
		if len(refs) == 0 {
			continue
		}
		found[id] = refs
		for _, ref := range refs {
			j.logger.Warn("unbalanced ledger document",
				slog.Int64("entity_id", id),
				slog.String("reference_type", ref.ReferenceType),
				slog.Int64("reference_id", ref.ReferenceID),
				slog.String("debit", ref.Debit.String()),
				slog.String("credit", ref.Credit.String()))
		}
	}
	j.logger.Info("GL integrity check executed", slog.Int("entities", len(entities)), slog.Int("unbalanced_entities", len(found)))
	return found, tracker.End(nil)
}
