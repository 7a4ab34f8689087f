package chart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository reads the chart of accounts and the journal registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, entity_id, number, label, class, type, active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.EntityID, &a.Number, &a.Label, &a.Class, &a.Type, &a.Active, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// AccountByNumber resolves an account of entityID by its number.
func (r *Repository) AccountByNumber(ctx context.Context, entityID int64, number string) (Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE entity_id=$1 AND number=$2`, entityID, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.NotFound("account", number)
		}
		return Account{}, err
	}
	return a, nil
}

// ListAccounts returns every account of entityID ordered by number.
func (r *Repository) ListAccounts(ctx context.Context, entityID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE entity_id=$1 ORDER BY number`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// JournalByKind resolves the journal used for kind; the lowest code wins when
// several journals share a kind.
func (r *Repository) JournalByKind(ctx context.Context, entityID int64, kind JournalKind) (Journal, error) {
	var j Journal
	err := r.pool.QueryRow(ctx, `SELECT id, entity_id, code, label, kind FROM journals WHERE entity_id=$1 AND kind=$2 ORDER BY code LIMIT 1`, entityID, kind).
		Scan(&j.ID, &j.EntityID, &j.Code, &j.Label, &j.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.NotFound("journal", kind)
		}
		return Journal{}, err
	}
	return j, nil
}

// JournalByCode resolves a journal by its code.
func (r *Repository) JournalByCode(ctx context.Context, entityID int64, code string) (Journal, error) {
	var j Journal
	err := r.pool.QueryRow(ctx, `SELECT id, entity_id, code, label, kind FROM journals WHERE entity_id=$1 AND code=$2`, entityID, code).
		Scan(&j.ID, &j.EntityID, &j.Code, &j.Label, &j.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.NotFound("journal", code)
		}
		return Journal{}, err
	}
	return j, nil
}

// EntityIDs lists every entity that has a chart of accounts.
func (r *Repository) EntityIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT entity_id FROM accounts ORDER BY entity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
