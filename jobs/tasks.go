package jobs

import "github.com/hibiken/asynq"

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskLedgerIntegrity recomputes balances and stock from the history
	// streams and logs any drift.
	TaskLedgerIntegrity = "ledger:integrity"

	// TaskCacheSweep drops history cache pages left behind by generation
	// bumps.
	TaskCacheSweep = "cache:sweep"
)

// NewLedgerIntegrityTask constructs the integrity check task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewCacheSweepTask constructs the cache sweep task.
func NewCacheSweepTask() *asynq.Task {
	return asynq.NewTask(TaskCacheSweep, nil)
}
