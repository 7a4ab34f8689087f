package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue for scheduled maintenance jobs.
	QueueDefault = "default"
	// QueuePosting carries drain nudges so they are not starved by long sweeps.
	QueuePosting = "posting"

	// TaskPostingDrain moves due posting_queue rows into the ledger.
	TaskPostingDrain = "ledger:post:drain"
	// TaskLedgerBackfill posts source documents that never reached the ledger.
	TaskLedgerBackfill = "ledger:backfill"
	// TaskGLIntegrity lists posted documents whose lines no longer balance.
	TaskGLIntegrity = "gl:integrity"
)

// DrainPayload sizes one drain pass.
type DrainPayload struct {
	Limit int `json:"limit"`
}

// BackfillPayload scopes a backfill sweep. A zero EntityID sweeps every entity.
type BackfillPayload struct {
	EntityID int64    `json:"entity_id"`
	Kinds    []string `json:"kinds,omitempty"`
}

// IntegrityPayload scopes an integrity check. A zero EntityID checks every entity.
type IntegrityPayload struct {
	EntityID int64 `json:"entity_id"`
}

// NewDrainTask constructs a drain task.
func NewDrainTask(limit int) (*asynq.Task, error) {
	return newTask(TaskPostingDrain, DrainPayload{Limit: limit})
}

// NewBackfillTask constructs a backfill task.
func NewBackfillTask(entityID int64, kinds []string) (*asynq.Task, error) {
	return newTask(TaskLedgerBackfill, BackfillPayload{EntityID: entityID, Kinds: kinds})
}

// NewIntegrityTask constructs an integrity check task.
func NewIntegrityTask(entityID int64) (*asynq.Task, error) {
	return newTask(TaskGLIntegrity, IntegrityPayload{EntityID: entityID})
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}

func decode(t *asynq.Task, dest any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
