package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gazette-app/gazette/internal/jobs"
)

// DefaultIdempotencyRetention bounds how long submitted form keys are remembered.
const DefaultIdempotencyRetention = 24 * time.Hour

// SessionPurger removes expired session records.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// KeyPurger removes stale idempotency keys.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MaintenanceJob sweeps tables that only grow.
type MaintenanceJob struct {
	Sessions SessionPurger
	Keys     KeyPurger
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// Handle processes TaskTypeMaintenance tasks.
func (j *MaintenanceJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	var payload MaintenancePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("maintenance payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.IdempotencyRetention <= 0 {
		payload.IdempotencyRetention = DefaultIdempotencyRetention
	}

	tracker := j.Metrics.Track(TaskTypeMaintenance)
	defer func() { err = tracker.End(err) }()

	logger := j.logger()
	if j.Sessions != nil {
		n, err := j.Sessions.PurgeExpiredSessions(ctx, j.now())
		if err != nil {
			logger.Error("purge sessions", slog.Any("error", err))
			return err
		}
		j.Metrics.AddPurged("sessions", n)
		logger.Info("purged sessions", slog.Int64("rows", n))
	}
	if j.Keys != nil {
		n, err := j.Keys.Cleanup(ctx, payload.IdempotencyRetention)
		if err != nil {
			logger.Error("purge idempotency keys", slog.Any("error", err))
			return err
		}
		j.Metrics.AddPurged("idempotency_keys", n)
		logger.Info("purged idempotency keys", slog.Int64("rows", n))
	}
	return nil
}

func (j *MaintenanceJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *MaintenanceJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
