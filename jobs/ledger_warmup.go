package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/parkyard/parkyard/internal/jobs"
	"github.com/parkyard/parkyard/internal/ledger"
)

// SessionLedgers computes (and caches) a session's totals.
type SessionLedgers interface {
	SessionLedger(ctx context.Context, sessionID int64) (ledger.SessionTotals, error)
}

// LedgerWarmupJob fills the ledger cache for a session, typically right after
// it closes so the closing report and audits read a warm cache.
type LedgerWarmupJob struct {
	Ledger  SessionLedgers
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerWarmupJob wires the warmup handler.
func NewLedgerWarmupJob(ledgers SessionLedgers, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerWarmupJob {
	return &LedgerWarmupJob{Ledger: ledgers, Logger: logger, Metrics: metrics}
}

// Handle processes warmup tasks.
func (j *LedgerWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger warmup: handler not configured")
	}
	var payload LedgerWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.SessionID <= 0 {
		return asynq.SkipRetry
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLedgerWarmup)
	logger := j.logger().With(slog.Int64("session_id", payload.SessionID))

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	totals, err := j.Ledger.SessionLedger(ctx, payload.SessionID)
	if err != nil {
		logger.Error("warm session ledger", slog.Any("error", err))
		return tracker.End(err)
	}
	if len(totals.Warnings) > 0 {
		logger.Warn("ledger has integrity warnings", slog.Int("warnings", len(totals.Warnings)))
	}
	logger.Info("ledger warmed", slog.String("final_value", totals.FinalValue.String()), slog.Int("transactions", totals.Transactions))
	return tracker.End(nil)
}

func (j *LedgerWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerWarmup))
	}
	return slog.Default().With(slog.String("job", TaskLedgerWarmup))
}
