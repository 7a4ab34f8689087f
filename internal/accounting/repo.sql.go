package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Repository persists ledger lines.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockReference(ctx context.Context, entityID int64, refType string, refID int64) error
	ReferenceLines(ctx context.Context, entityID int64, refType string, refID int64) ([]Line, error)
	InsertLine(ctx context.Context, line Line) (Line, error)
	GetLineForUpdate(ctx context.Context, id int64) (Line, error)
	UpdateLine(ctx context.Context, line Line) (Line, error)
	DeleteLine(ctx context.Context, id int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a read-committed transaction. Read committed lets a
// statement issued after LockReference see lines committed by the previous holder.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const lineColumns = `l.id, l.entity_id, l.number, l.date, l.journal_id, j.code, l.piece_number, l.label, l.account_id, a.number,
l.debit, l.credit, l.reference, l.reference_type, l.reference_id, l.posted_by, l.created_at, l.updated_at`

const lineFrom = ` FROM ledger_lines l
JOIN journals j ON j.id = l.journal_id
JOIN accounts a ON a.id = l.account_id`

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.EntityID, &l.Number, &l.Date, &l.JournalID, &l.JournalCode, &l.PieceNumber, &l.Label,
		&l.AccountID, &l.AccountNumber, &l.Debit, &l.Credit, &l.Reference, &l.ReferenceType, &l.ReferenceID,
		&l.PostedBy, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func collectLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) LockReference(ctx context.Context, entityID int64, refType string, refID int64) error {
	key := fmt.Sprintf("ledger:%d:%s:%d", entityID, refType, refID)
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

func (r *txRepository) ReferenceLines(ctx context.Context, entityID int64, refType string, refID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lineColumns+lineFrom+`
WHERE l.entity_id=$1 AND l.reference_type=$2 AND l.reference_id=$3 ORDER BY l.id`, entityID, refType, refID)
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (Line, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_lines (entity_id, number, date, journal_id, piece_number, label, account_id, debit, credit, reference, reference_type, reference_id, posted_by)
VALUES ($1, $2::text || '-' || LPAD(nextval('ledger_line_number_seq')::text, 8, '0'), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id, number, created_at, updated_at`,
		line.EntityID, line.JournalCode, line.Date, line.JournalID, line.PieceNumber, line.Label, line.AccountID,
		line.Debit, line.Credit, line.Reference, line.ReferenceType, line.ReferenceID, line.PostedBy).
		Scan(&line.ID, &line.Number, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return Line{}, err
	}
	return line, nil
}

func (r *txRepository) GetLineForUpdate(ctx context.Context, id int64) (Line, error) {
	line, err := scanLine(r.tx.QueryRow(ctx, `SELECT `+lineColumns+lineFrom+` WHERE l.id=$1 FOR UPDATE OF l`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, shared.NotFound("ledger line", id)
		}
		return Line{}, err
	}
	return line, nil
}

func (r *txRepository) UpdateLine(ctx context.Context, line Line) (Line, error) {
	err := r.tx.QueryRow(ctx, `UPDATE ledger_lines SET date=$2, journal_id=$3, piece_number=$4, label=$5, account_id=$6,
debit=$7, credit=$8, reference=$9, updated_at=NOW() WHERE id=$1 RETURNING updated_at`,
		line.ID, line.Date, line.JournalID, line.PieceNumber, line.Label, line.AccountID, line.Debit, line.Credit, line.Reference).
		Scan(&line.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, shared.NotFound("ledger line", line.ID)
		}
		return Line{}, err
	}
	return line, nil
}

func (r *txRepository) DeleteLine(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ledger_lines WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("ledger line", id)
	}
	return nil
}

// ListLines returns the lines matching q ordered by date then number.
func (r *Repository) ListLines(ctx context.Context, q LineQuery) ([]Line, error) {
	where, args := lineFilter(q)
	args = append(args, shared.ClampLimit(q.Limit))
	rows, err := r.pool.Query(ctx, `SELECT `+lineColumns+lineFrom+where+
		fmt.Sprintf(` ORDER BY l.date, l.number LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, err
	}
	return collectLines(rows)
}

// UnbalancedReferences lists posted documents of entityID whose lines do not balance.
// Manual lines are excluded since their balance is the operator's responsibility.
func (r *Repository) UnbalancedReferences(ctx context.Context, entityID int64) ([]UnbalancedReference, error) {
	rows, err := r.pool.Query(ctx, `SELECT reference_type, reference_id, SUM(debit), SUM(credit)
FROM ledger_lines
WHERE entity_id=$1 AND reference_type <> $2
GROUP BY reference_type, reference_id
HAVING SUM(debit) <> SUM(credit)
ORDER BY reference_type, reference_id`, entityID, ReferenceManual)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UnbalancedReference
	for rows.Next() {
		var u UnbalancedReference
		if err := rows.Scan(&u.ReferenceType, &u.ReferenceID, &u.Debit, &u.Credit); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// lineFilter renders the WHERE clause of q with positional arguments.
func lineFilter(q LineQuery) (string, []any) {
	clauses := []string{"l.entity_id=$1"}
	args := []any{q.EntityID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !q.From.IsZero() {
		add("l.date >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("l.date <= $%d", q.To)
	}
	if q.JournalCode != "" {
		add("j.code = $%d", q.JournalCode)
	}
	if q.AccountNumber != "" {
		add("a.number = $%d", q.AccountNumber)
	}
	if q.ReferenceType != "" {
		add("l.reference_type = $%d", q.ReferenceType)
	}
	if q.ReferenceID > 0 {
		add("l.reference_id = $%d", q.ReferenceID)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
