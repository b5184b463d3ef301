package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStaleSessionScan looks for cash sessions left open too long.
	TaskStaleSessionScan = "cashsession:stale_scan"
	// TaskIdempotencyCleanup purges old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskLedgerWarmup precomputes the cached ledger of a session.
	TaskLedgerWarmup = "ledger:warmup"
)

// StaleSessionScanPayload overrides the scan threshold when set.
type StaleSessionScanPayload struct {
	OpenLongerThan string `json:"open_longer_than,omitempty"`
}

// IdempotencyCleanupPayload overrides the retention when set.
type IdempotencyCleanupPayload struct {
	Retention string `json:"retention,omitempty"`
}

// LedgerWarmupPayload names the session to warm.
type LedgerWarmupPayload struct {
	SessionID int64 `json:"session_id"`
}

// NewStaleSessionScanTask builds a scan task. A zero threshold uses the job default.
func NewStaleSessionScanTask(threshold time.Duration) (*asynq.Task, error) {
	payload := StaleSessionScanPayload{}
	if threshold > 0 {
		payload.OpenLongerThan = threshold.String()
	}
	return newTask(TaskStaleSessionScan, payload)
}

// NewIdempotencyCleanupTask builds a cleanup task. A zero retention uses the job default.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	payload := IdempotencyCleanupPayload{}
	if retention > 0 {
		payload.Retention = retention.String()
	}
	return newTask(TaskIdempotencyCleanup, payload)
}

// NewLedgerWarmupTask builds a warmup task for one session.
func NewLedgerWarmupTask(sessionID int64) (*asynq.Task, error) {
	return newTask(TaskLedgerWarmup, LedgerWarmupPayload{SessionID: sessionID})
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data, asynq.Queue(QueueDefault)), nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
