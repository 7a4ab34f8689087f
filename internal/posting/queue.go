package posting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Status is the lifecycle state of a queued event.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusRetry      Status = "RETRY"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
)

// QueueItem is one durable posting request.
type QueueItem struct {
	ID          int64      `json:"id"`
	Event       Event      `json:"event"`
	Status      Status     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	Lines       int        `json:"lines"`
	AvailableAt time.Time  `json:"available_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// QueueQuery filters the queue audit trail.
type QueueQuery struct {
	EntityID int64
	Status   Status
	Kind     Kind
	Limit    int
}

// QueueStore abstracts the posting_queue table.
type QueueStore interface {
	Enqueue(ctx context.Context, evt Event) (QueueItem, bool, error)
	Claim(ctx context.Context, limit int, lease time.Duration) ([]QueueItem, error)
	MarkDone(ctx context.Context, id int64, lines int) error
	MarkRetry(ctx context.Context, id int64, lastErr string, availableAt time.Time) error
	MarkFailed(ctx context.Context, id int64, lastErr string) error
	List(ctx context.Context, q QueueQuery) ([]QueueItem, error)
}

// Queue persists posting requests in Postgres.
type Queue struct {
	pool *pgxpool.Pool
}

// NewQueue constructs a pgx-backed queue.
func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

const queueColumns = `id, payload, status, attempts, COALESCE(last_error, ''), lines, available_at, locked_until, created_at, updated_at`

// Enqueue stores evt unless its key is already queued. The boolean reports whether
// a new row was written.
func (q *Queue) Enqueue(ctx context.Context, evt Event) (QueueItem, bool, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return QueueItem{}, false, fmt.Errorf("posting: encode event: %w", err)
	}
	row := q.pool.QueryRow(ctx, `INSERT INTO posting_queue (entity_id, kind, document_id, posting_key, payload, status)
VALUES ($1, $2, $3, $4, $5, 'PENDING')
ON CONFLICT (entity_id, kind, document_id) DO NOTHING
RETURNING `+queueColumns, evt.EntityID, string(evt.Kind), evt.DocumentID, evt.Key(), payload)
	item, err := scanItem(row)
	if err == nil {
		return item, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return QueueItem{}, false, err
	}
	row = q.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM posting_queue
WHERE entity_id = $1 AND kind = $2 AND document_id = $3`, evt.EntityID, string(evt.Kind), evt.DocumentID)
	item, err = scanItem(row)
	return item, false, err
}

// Claim leases up to limit due rows. Expired PROCESSING leases are reclaimed so a
// crashed consumer does not strand its batch.
func (q *Queue) Claim(ctx context.Context, limit int, lease time.Duration) ([]QueueItem, error) {
	rows, err := q.pool.Query(ctx, `UPDATE posting_queue SET
	status = 'PROCESSING',
	attempts = attempts + 1,
	locked_until = NOW() + make_interval(secs => $2),
	updated_at = NOW()
WHERE id IN (
	SELECT id FROM posting_queue
	WHERE (status IN ('PENDING', 'RETRY') AND available_at <= NOW())
	   OR (status = 'PROCESSING' AND locked_until < NOW())
	ORDER BY id
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
RETURNING `+queueColumns, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkDone closes a row after its document was posted.
func (q *Queue) MarkDone(ctx context.Context, id int64, lines int) error {
	return q.mark(ctx, `UPDATE posting_queue SET status = 'DONE', lines = $2, last_error = NULL,
locked_until = NULL, updated_at = NOW() WHERE id = $1`, id, lines)
}

// MarkRetry schedules another attempt.
func (q *Queue) MarkRetry(ctx context.Context, id int64, lastErr string, availableAt time.Time) error {
	return q.mark(ctx, `UPDATE posting_queue SET status = 'RETRY', last_error = $2, available_at = $3,
locked_until = NULL, updated_at = NOW() WHERE id = $1`, id, lastErr, availableAt)
}

// MarkFailed parks a row for operator attention. Rows are never deleted.
func (q *Queue) MarkFailed(ctx context.Context, id int64, lastErr string) error {
	return q.mark(ctx, `UPDATE posting_queue SET status = 'FAILED', last_error = $2,
locked_until = NULL, updated_at = NOW() WHERE id = $1`, id, lastErr)
}

func (q *Queue) mark(ctx context.Context, sql string, args ...any) error {
	tag, err := q.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("posting queue item", args[0])
	}
	return nil
}

// List returns queue rows newest first.
func (q *Queue) List(ctx context.Context, query QueueQuery) ([]QueueItem, error) {
	where, args := queueFilter(query)
	rows, err := q.pool.Query(ctx, `SELECT `+queueColumns+` FROM posting_queue`+where+
		fmt.Sprintf(" ORDER BY id DESC LIMIT %d", shared.ClampLimit(query.Limit)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountByStatus returns the number of rows per status.
func (q *Queue) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := q.pool.Query(ctx, `SELECT status, COUNT(*) FROM posting_queue GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func queueFilter(q QueueQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if q.EntityID > 0 {
		add("entity_id = $%d", q.EntityID)
	}
	if q.Status != "" {
		add("status = $%d", string(q.Status))
	}
	if q.Kind != "" {
		add("kind = $%d", string(q.Kind))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanItem(row pgx.Row) (QueueItem, error) {
	var (
		item    QueueItem
		payload []byte
		status  string
	)
	if err := row.Scan(&item.ID, &payload, &status, &item.Attempts, &item.LastError, &item.Lines,
		&item.AvailableAt, &item.LockedUntil, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return QueueItem{}, err
	}
	if err := json.Unmarshal(payload, &item.Event); err != nil {
		return QueueItem{}, fmt.Errorf("posting: decode queue item %d: %w", item.ID, err)
	}
	item.Status = Status(status)
	return item, nil
}
