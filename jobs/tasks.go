// Package jobs defines the background tasks: cache warmup for recently
// active principals and audit log retention.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzWarmup pre-populates permission caches for active principals.
	TaskAuthzWarmup = "authz:warmup"
	// TaskAuditCleanup prunes audit log rows past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// AuthzWarmupPayload bounds which principals get their caches warmed.
type AuthzWarmupPayload struct {
	ActiveWithinHours int `json:"active_within_hours"`
	Limit             int `json:"limit"`
}

// NewAuthzWarmupTask constructs an Asynq task.
func NewAuthzWarmupTask(payload AuthzWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzWarmup, data), nil
}

// AuditCleanupPayload overrides the configured retention window when set.
type AuditCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewAuditCleanupTask constructs an Asynq task.
func NewAuditCleanupTask(payload AuditCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
