package posting

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Notifier wakes the drain worker once a row is queued.
type Notifier interface {
	NotifyPosting(ctx context.Context, key uuid.UUID) error
}

// Submitter queues events after their business mutation committed.
type Submitter struct {
	queue    QueueStore
	notifier Notifier
	logger   *slog.Logger
}

// NewSubmitter constructs a Submitter. notifier may be nil, in which case rows
// wait for the scheduled drain.
func NewSubmitter(queue QueueStore, notifier Notifier, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{queue: queue, notifier: notifier, logger: logger}
}

// Submit durably queues evt. The returned error, if any, is a *shared.PostingFailure
// meant to be reported as a warning; the caller's mutation stands.
func (s *Submitter) Submit(ctx context.Context, evt Event) error {
	fail := func(err error) error {
		return &shared.PostingFailure{ReferenceType: string(evt.Kind), ReferenceID: evt.DocumentID, Err: err}
	}
	if err := evt.Validate(); err != nil {
		return fail(err)
	}
	item, created, err := s.queue.Enqueue(ctx, evt)
	if err != nil {
		return fail(err)
	}
	if !created {
		s.logger.Debug("posting already queued",
			slog.Int64("queue_id", item.ID),
			slog.String("status", string(item.Status)))
		return nil
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyPosting(ctx, evt.Key()); err != nil {
			s.logger.Warn("posting notify failed, waiting for scheduled drain",
				slog.Int64("queue_id", item.ID),
				slog.Any("error", err))
		}
	}
	return nil
}
