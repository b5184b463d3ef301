package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/parkyard/parkyard/internal/cashsession"
	jobmetrics "github.com/parkyard/parkyard/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OpenSessions lists sessions that opened before a cutoff and are still OPEN.
type OpenSessions interface {
	OpenSince(ctx context.Context, before time.Time) ([]cashsession.Session, error)
}

// StaleSessionScanJob flags cash sessions left open past the threshold. It
// only reports; closing a till is always an operator decision.
type StaleSessionScanJob struct {
	Sessions  OpenSessions
	Threshold time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewStaleSessionScanJob wires the scan handler.
func NewStaleSessionScanJob(sessions OpenSessions, threshold time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *StaleSessionScanJob {
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	return &StaleSessionScanJob{
		Sessions:  sessions,
		Threshold: threshold,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes stale scan tasks.
func (j *StaleSessionScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sessions == nil {
		return errors.New("stale session scan: handler not configured")
	}
	var payload StaleSessionScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	threshold := parseDuration(payload.OpenLongerThan, j.Threshold)

	tracker := j.metrics().Track(TaskStaleSessionScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	_, resultErr = j.Scan(ctx, threshold)
	return resultErr
}

// Scan returns the sessions open longer than threshold and updates the gauge.
func (j *StaleSessionScanJob) Scan(ctx context.Context, threshold time.Duration) ([]cashsession.Session, error) {
	now := j.now()
	stale, err := j.Sessions.OpenSince(ctx, now.Add(-threshold))
	if err != nil {
		j.logger().Error("list open sessions", slog.Any("error", err))
		return nil, err
	}
	j.metrics().SetStaleSessions(len(stale))
	for _, s := range stale {
		var openFor time.Duration
		if s.OpeningDate != nil {
			openFor = now.Sub(*s.OpeningDate).Round(time.Minute)
		}
		j.logger().Warn("cash session left open",
			slog.Int64("session_id", s.ID),
			slog.String("operator", s.Operator),
			slog.Duration("open_for", openFor))
	}
	return stale, nil
}

func (j *StaleSessionScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStaleSessionScan))
	}
	return slog.Default().With(slog.String("job", TaskStaleSessionScan))
}

func (j *StaleSessionScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StaleSessionScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
