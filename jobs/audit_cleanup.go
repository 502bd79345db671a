package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stagedoor-hq/stagedoor/internal/jobs"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// AuditCleanupJob prunes audit log rows past the retention window.
type AuditCleanupJob struct {
	Audit     *shared.AuditLogger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewAuditCleanupJob wires dependencies for the cleanup handler.
func NewAuditCleanupJob(audit *shared.AuditLogger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditCleanupJob {
	return &AuditCleanupJob{Audit: audit, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes cleanup tasks.
func (j *AuditCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("audit cleanup: handler not configured")
	}
	var payload AuditCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	tracker := j.metrics().Track(TaskAuditCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Duration("retention", retention))
	removed, err := j.Audit.Cleanup(ctx, retention)
	if err != nil {
		resultErr = err
		logger.Error("audit cleanup failed", slog.Any("error", err))
		return resultErr
	}
	logger.Info("completed audit cleanup", slog.Int64("removed", removed))
	return resultErr
}

func (j *AuditCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditCleanup))
	}
	return slog.Default().With(slog.String("job", TaskAuditCleanup))
}

func (j *AuditCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
