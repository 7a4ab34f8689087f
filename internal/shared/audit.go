package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	EntityID int64
	ActorID  int64
	Action   string
	Object   string
	ObjectID string
	Meta     map[string]any
	At       time.Time
}

// Execer is the subset of pgxpool.Pool and pgx.Tx the audit logger writes through.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	db Execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db}
}

var errAuditIncomplete = errors.New("audit log requires entity/action/object/object_id")

// Record persists the log entry. A nil Meta is stored as an empty object.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.EntityID <= 0 || log.Action == "" || log.Object == "" || log.ObjectID == "" {
		return errAuditIncomplete
	}
	meta := log.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At.UTC()
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (entity_id, actor_id, action, object, object_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`, log.EntityID, log.ActorID, log.Action, log.Object, log.ObjectID, metaJSON, at)
	return err
}
