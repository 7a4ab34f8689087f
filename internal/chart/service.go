package chart

import (
	"context"
	"strconv"

	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RepositoryPort abstracts chart storage.
type RepositoryPort interface {
	AccountByNumber(ctx context.Context, entityID int64, number string) (Account, error)
	ListAccounts(ctx context.Context, entityID int64) ([]Account, error)
	JournalByKind(ctx context.Context, entityID int64, kind JournalKind) (Journal, error)
	JournalByCode(ctx context.Context, entityID int64, code string) (Journal, error)
}

// Service serves chart lookups, memoised per entity in Redis.
type Service struct {
	repo  RepositoryPort
	cache *cache.Versioned
}

// NewService constructs Service. cache may be nil.
func NewService(repo RepositoryPort, c *cache.Versioned) *Service {
	return &Service{repo: repo, cache: c}
}

func scope(entityID int64) string {
	return strconv.FormatInt(entityID, 10)
}

// Account resolves an account by number. Unknown numbers yield a NotFoundError.
func (s *Service) Account(ctx context.Context, entityID int64, number string) (Account, error) {
	if number == "" {
		return Account{}, shared.Validation("account", "number required")
	}
	key, err := s.cache.BuildKey(ctx, scope(entityID), "account", number)
	if err != nil {
		return s.repo.AccountByNumber(ctx, entityID, number)
	}
	var account Account
	err = s.cache.FetchJSON(ctx, key, &account, func(ctx context.Context) (any, error) {
		return s.repo.AccountByNumber(ctx, entityID, number)
	})
	return account, err
}

// Journal resolves the journal used for kind.
func (s *Service) Journal(ctx context.Context, entityID int64, kind JournalKind) (Journal, error) {
	if !kind.Valid() {
		return Journal{}, shared.Validation("journal", "unknown kind %q", kind)
	}
	key, err := s.cache.BuildKey(ctx, scope(entityID), "journal", string(kind))
	if err != nil {
		return s.repo.JournalByKind(ctx, entityID, kind)
	}
	var journal Journal
	err = s.cache.FetchJSON(ctx, key, &journal, func(ctx context.Context) (any, error) {
		return s.repo.JournalByKind(ctx, entityID, kind)
	})
	return journal, err
}

// JournalByCode resolves a journal by code without caching; used by the manual path.
func (s *Service) JournalByCode(ctx context.Context, entityID int64, code string) (Journal, error) {
	if code == "" {
		return Journal{}, shared.Validation("journal", "code required")
	}
	return s.repo.JournalByCode(ctx, entityID, code)
}

// ListAccounts returns the full chart of entityID.
func (s *Service) ListAccounts(ctx context.Context, entityID int64) ([]Account, error) {
	return s.repo.ListAccounts(ctx, entityID)
}

// Invalidate drops cached lookups after the chart of entityID was edited.
func (s *Service) Invalidate(ctx context.Context, entityID int64) error {
	return s.cache.Bump(ctx, scope(entityID))
}
