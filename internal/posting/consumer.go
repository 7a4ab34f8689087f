package posting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Poster posts one event.
type Poster interface {
	Post(ctx context.Context, evt Event) (Result, error)
}

// Recorder observes posting outcomes. jobmetrics.Metrics satisfies it.
type Recorder interface {
	ObservePosting(kind, outcome string)
}

// ConsumerConfig tunes the drain loop.
type ConsumerConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	Lease       time.Duration
}

// DrainReport summarises one drain pass.
type DrainReport struct {
	Claimed    int
	Posted     int
	Duplicates int
	Retried    int
	Failed     int
	Warnings   []error
}

// Consumer moves queued events into the ledger.
type Consumer struct {
	queue    QueueStore
	poster   Poster
	recorder Recorder
	logger   *slog.Logger
	cfg      ConsumerConfig
	now      func() time.Time
}

// NewConsumer constructs a Consumer. recorder may be nil.
func NewConsumer(queue QueueStore, poster Poster, recorder Recorder, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{queue: queue, poster: poster, recorder: recorder, logger: logger, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock for testing.
func (c *Consumer) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Drain claims up to limit due rows and posts them one by one. A row failing its
// last attempt is parked as FAILED and reported as a PostingFailure warning.
func (c *Consumer) Drain(ctx context.Context, limit int) (DrainReport, error) {
	var report DrainReport
	items, err := c.queue.Claim(ctx, limit, c.cfg.Lease)
	if err != nil {
		return report, err
	}
	report.Claimed = len(items)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := c.process(ctx, item, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (c *Consumer) process(ctx context.Context, item QueueItem, report *DrainReport) error {
	evt := item.Event
	result, postErr := c.poster.Post(ctx, evt)
	if postErr == nil {
		if err := c.queue.MarkDone(ctx, item.ID, len(result.Lines)); err != nil {
			return err
		}
		if result.Duplicate {
			report.Duplicates++
			c.observe(evt.Kind, "duplicate")
		} else {
			report.Posted++
			c.observe(evt.Kind, "posted")
		}
		return nil
	}

	permanent := errors.Is(postErr, shared.ErrValidation)
	if !permanent && item.Attempts < c.cfg.MaxAttempts {
		next := c.now().Add(time.Duration(item.Attempts) * c.cfg.Backoff)
		if err := c.queue.MarkRetry(ctx, item.ID, postErr.Error(), next); err != nil {
			return err
		}
		report.Retried++
		c.observe(evt.Kind, "retry")
		c.logger.Info("posting retry scheduled",
			slog.Int64("queue_id", item.ID),
			slog.String("kind", string(evt.Kind)),
			slog.Int64("document_id", evt.DocumentID),
			slog.Int("attempts", item.Attempts),
			slog.Any("error", postErr))
		return nil
	}

	if err := c.queue.MarkFailed(ctx, item.ID, postErr.Error()); err != nil {
		return err
	}
	failure := &shared.PostingFailure{ReferenceType: string(evt.Kind), ReferenceID: evt.DocumentID, Err: postErr}
	report.Failed++
	report.Warnings = append(report.Warnings, failure)
	c.observe(evt.Kind, "failed")
	c.logger.Warn("posting failed",
		slog.Int64("queue_id", item.ID),
		slog.Int64("entity_id", evt.EntityID),
		slog.Int("attempts", item.Attempts),
		slog.Any("error", failure))
	return nil
}

func (c *Consumer) observe(kind Kind, outcome string) {
	if c.recorder != nil {
		c.recorder.ObservePosting(string(kind), outcome)
	}
}
