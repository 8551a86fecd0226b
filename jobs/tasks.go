package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskVerificationSync lazily creates verification records for new
	// staff transactions.
	TaskVerificationSync = "verification:sync"
	// TaskLedgerIntegrity scans stock entries for invariant violations.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewVerificationSyncTask constructs the verification sync task.
func NewVerificationSyncTask() *asynq.Task {
	return asynq.NewTask(TaskVerificationSync, nil)
}

// NewLedgerIntegrityTask constructs the ledger integrity scan task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewIdempotencyCleanupTask constructs the idempotency cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
