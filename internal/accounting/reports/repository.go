package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Filter narrows the lines a report aggregates. Zero values disable a filter.
type Filter struct {
	EntityID    int64
	From        time.Time
	To          time.Time
	JournalCode string
	Class       string
}

// Repository reads report entries from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the report repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Entries returns every line matching f joined with its account.
func (r *Repository) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	where, args := entryFilter(f)
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.number, l.date, j.code, l.piece_number, l.label,
a.number, a.label, a.class, a.type, l.debit, l.credit, l.reference_type, l.reference_id
FROM ledger_lines l
JOIN accounts a ON a.id = l.account_id
JOIN journals j ON j.id = l.journal_id`+where+`
ORDER BY a.class, a.number, l.date, l.number`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.LineID, &e.Number, &e.Date, &e.JournalCode, &e.PieceNumber, &e.Label,
			&e.AccountNumber, &e.AccountLabel, &e.AccountClass, &e.AccountType, &e.Debit, &e.Credit,
			&e.ReferenceType, &e.ReferenceID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func entryFilter(f Filter) (string, []any) {
	clauses := []string{"l.entity_id=$1"}
	args := []any{f.EntityID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("l.date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("l.date <= $%d", f.To)
	}
	if f.JournalCode != "" {
		add("j.code = $%d", f.JournalCode)
	}
	if f.Class != "" {
		add("a.class = $%d", f.Class)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
