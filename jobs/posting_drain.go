package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/posting"
)

// Drainer runs one pass over the posting queue.
type Drainer interface {
	Drain(ctx context.Context, limit int) (posting.DrainReport, error)
}

// PostingDrainJob drains the posting queue until a pass claims less than a batch.
type PostingDrainJob struct {
	drainer Drainer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	batch   int
	// maxPasses bounds one task so a flood of rows cannot pin a worker.
	maxPasses int
}

// NewPostingDrainJob initialises the drain handler.
func NewPostingDrainJob(drainer Drainer, batch int, logger *slog.Logger, metrics *jobmetrics.Metrics) *PostingDrainJob {
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostingDrainJob{drainer: drainer, logger: logger, metrics: metrics, batch: batch, maxPasses: 20}
}

// Handle executes TaskPostingDrain.
func (j *PostingDrainJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.drainer == nil {
		return errors.New("posting drain: handler not configured")
	}
	var payload DrainPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	_, err := j.Run(ctx, payload.Limit)
	return err
}

// Run drains up to maxPasses batches and returns the summed report.
func (j *PostingDrainJob) Run(ctx context.Context, limit int) (posting.DrainReport, error) {
	if limit <= 0 {
		limit = j.batch
	}
	tracker := j.metrics.Track(TaskPostingDrain)
	var total posting.DrainReport
	for pass := 0; pass < j.maxPasses; pass++ {
		report, err := j.drainer.Drain(ctx, limit)
		total.Claimed += report.Claimed
		total.Posted += report.Posted
		total.Duplicates += report.Duplicates
		total.Retried += report.Retried
		total.Failed += report.Failed
		total.Warnings = append(total.Warnings, report.Warnings...)
		if err != nil {
			j.logger.Error("posting drain failed", slog.Any("error", err))
			return total, tracker.End(err)
		}
		if report.Claimed < limit {
			break
		}
	}
	if total.Claimed > 0 {
		j.logger.Info("posting drain finished",
			slog.Int("claimed", total.Claimed),
			slog.Int("posted", total.Posted),
			slog.Int("duplicates", total.Duplicates),
			slog.Int("retried", total.Retried),
			slog.Int("failed", total.Failed))
	}
	return total, tracker.End(nil)
}
