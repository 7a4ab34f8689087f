package chart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

type memoryRepo struct {
	accounts map[string]Account
	journals []Journal
	lookups  int
}

func (r *memoryRepo) AccountByNumber(ctx context.Context, entityID int64, number string) (Account, error) {
	r.lookups++
	a, ok := r.accounts[number]
	if !ok || a.EntityID != entityID {
		return Account{}, shared.NotFound("account", number)
	}
	return a, nil
}

func (r *memoryRepo) ListAccounts(ctx context.Context, entityID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) JournalByKind(ctx context.Context, entityID int64, kind JournalKind) (Journal, error) {
	r.lookups++
	for _, j := range r.journals {
		if j.EntityID == entityID && j.Kind == kind {
			return j, nil
		}
	}
	return Journal{}, shared.NotFound("journal", kind)
}

func (r *memoryRepo) JournalByCode(ctx context.Context, entityID int64, code string) (Journal, error) {
	for _, j := range r.journals {
		if j.EntityID == entityID && j.Code == code {
			return j, nil
		}
	}
	return Journal{}, shared.NotFound("journal", code)
}

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := &memoryRepo{
		accounts: map[string]Account{
			"571": {ID: 1, EntityID: 1, Number: "571", Label: "Caisse", Type: AccountTypeAsset, Active: true},
		},
		journals: []Journal{{ID: 1, EntityID: 1, Code: "VT", Label: "Ventes", Kind: JournalSales}},
	}
	return NewService(repo, cache.NewVersioned(client, "chart", time.Minute)), repo
}

func TestAccountLookupIsCachedUntilInvalidated(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	a, err := svc.Account(ctx, 1, "571")
	require.NoError(t, err)
	require.Equal(t, "Caisse", a.Label)
	_, err = svc.Account(ctx, 1, "571")
	require.NoError(t, err)
	require.Equal(t, 1, repo.lookups)

	repo.accounts["571"] = Account{ID: 1, EntityID: 1, Number: "571", Label: "Caisse principale", Type: AccountTypeAsset, Active: true}
	require.NoError(t, svc.Invalidate(ctx, 1))
	a, err = svc.Account(ctx, 1, "571")
	require.NoError(t, err)
	require.Equal(t, "Caisse principale", a.Label)
	require.Equal(t, 2, repo.lookups)
}

func TestMissingEntriesAreNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Account(ctx, 1, "411")
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Account(ctx, 2, "571")
	require.ErrorIs(t, err, shared.ErrNotFound)

	j, err := svc.Journal(ctx, 1, JournalSales)
	require.NoError(t, err)
	require.Equal(t, "VT", j.Code)
	_, err = svc.Journal(ctx, 1, JournalBank)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Journal(ctx, 1, JournalKind("PAYROLL"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestClassOf(t *testing.T) {
	require.Equal(t, "5", ClassOf("571"))
	require.Equal(t, "", ClassOf("  "))
	require.Equal(t, "4", Account{Number: "411"}.ClassOrDefault())
	require.Equal(t, "41", Account{Number: "411", Class: "41"}.ClassOrDefault())
	require.True(t, AccountTypeExpense.DebitNormal())
	require.False(t, AccountTypeRevenue.DebitNormal())
}
