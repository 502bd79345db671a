package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stagedoor-hq/stagedoor/internal/authz"
	jobmetrics "github.com/stagedoor-hq/stagedoor/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PrincipalLister surfaces principals whose caches are worth warming.
type PrincipalLister interface {
	ListRecentlyActivePrincipals(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// AuthzWarmupJob pre-populates the permission cache for recently active
// principals so their first request after a deploy skips the storage hit.
type AuthzWarmupJob struct {
	Resolver *authz.Resolver
	Store    PrincipalLister
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewAuthzWarmupJob wires dependencies for the warmup handler.
func NewAuthzWarmupJob(resolver *authz.Resolver, store PrincipalLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuthzWarmupJob {
	return &AuthzWarmupJob{
		Resolver: resolver,
		Store:    store,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes warmup tasks.
func (j *AuthzWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Resolver == nil || j.Store == nil {
		return errors.New("authz warmup: handler not configured")
	}
	var payload AuthzWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ActiveWithinHours <= 0 {
		payload.ActiveWithinHours = 24
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}

	tracker := j.metrics().Track(TaskAuthzWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("active_within_hours", payload.ActiveWithinHours))
	logger.Info("starting authz warmup")

	since := j.now().Add(-time.Duration(payload.ActiveWithinHours) * time.Hour)
	principals, err := j.Store.ListRecentlyActivePrincipals(ctx, since, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("load active principals", slog.Any("error", err))
		return resultErr
	}
	if len(principals) == 0 {
		logger.Info("no principals discovered for warmup")
		return resultErr
	}

	start := j.now()
	for _, principalID := range principals {
		// Each load writes through the cache. Failures degrade to a
		// cold cache, not a failed job.
		j.Resolver.UserRoles(ctx, principalID)
		j.Resolver.UserPermissions(ctx, principalID)
	}

	logger.Info("completed authz warmup",
		slog.Int("principals", len(principals)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *AuthzWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuthzWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAuthzWarmup))
}

func (j *AuthzWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuthzWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
