// Package reports aggregates posted ledger lines into the Balance and Grand Livre
// read models.
package reports

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// EntrySource loads report entries.
type EntrySource interface {
	Entries(ctx context.Context, f Filter) ([]Entry, error)
}

// Service builds reports, memoising them per entity until the ledger changes.
type Service struct {
	source EntrySource
	cache  *cache.Versioned
	group  singleflight.Group
}

// NewService constructs Service. cache may be nil.
func NewService(source EntrySource, c *cache.Versioned) *Service {
	return &Service{source: source, cache: c}
}

// Balance returns the Balance of the actor's entity.
func (s *Service) Balance(ctx context.Context, actor shared.Actor, f Filter) (Balance, error) {
	return build(ctx, s, actor, "balance", f, BuildBalance)
}

// GrandLivre returns the Grand Livre of the actor's entity.
func (s *Service) GrandLivre(ctx context.Context, actor shared.Actor, f Filter) (GrandLivre, error) {
	return build(ctx, s, actor, "grand-livre", f, BuildGrandLivre)
}

// Invalidate bumps the report version of entityID.
func (s *Service) Invalidate(ctx context.Context, entityID int64) error {
	return s.cache.Bump(ctx, scope(entityID))
}

// build collapses concurrent identical requests and serves from the versioned cache.
func build[T any](ctx context.Context, s *Service, actor shared.Actor, report string, f Filter, fold func([]Entry) T) (T, error) {
	var zero T
	if err := actor.Validate(); err != nil {
		return zero, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return zero, shared.Validation("to", "must not precede from")
	}
	f.EntityID = actor.EntityID
	parts := []string{report, dateKey(f), f.JournalCode, f.Class}
	key, err := s.cache.BuildKey(ctx, scope(f.EntityID), parts...)
	if err != nil {
		return zero, err
	}
	// The shared call outlives any single caller; each caller only stops waiting.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		var out T
		err := s.cache.FetchJSON(detached, key, &out, func(ctx context.Context) (any, error) {
			entries, err := s.source.Entries(ctx, f)
			if err != nil {
				return nil, err
			}
			return fold(entries), nil
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func scope(entityID int64) string {
	return "reports:" + strconv.FormatInt(entityID, 10)
}

func dateKey(f Filter) string {
	from, to := "", ""
	if !f.From.IsZero() {
		from = f.From.Format("20060102")
	}
	if !f.To.IsZero() {
		to = f.To.Format("20060102")
	}
	return from + "-" + to
}
