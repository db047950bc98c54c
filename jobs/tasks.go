package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans cached party balances against their statements.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportsWarmup rebuilds the accounting report cache.
	TaskReportsWarmup = "reports:warmup"
)

// LedgerIntegrityPayload selects scan scope. An empty Kind scans both ledgers;
// Repair makes the job recalculate drifted parties instead of only reporting.
type LedgerIntegrityPayload struct {
	Kind   string `json:"kind,omitempty"`
	Repair bool   `json:"repair"`
}

// NewLedgerIntegrityTask constructs an Asynq task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// ReportsWarmupPayload carries the as-of date for the warmup, RFC3339 date.
type ReportsWarmupPayload struct {
	AsOf string `json:"asOf,omitempty"`
}

// NewReportsWarmupTask constructs an Asynq task.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}
