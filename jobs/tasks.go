package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeRoleChanged emails a user whose role was changed by a master.
	TaskTypeRoleChanged = "mail:role_changed"
	// TaskTypeMaintenance purges expired sessions and stale idempotency keys.
	TaskTypeMaintenance = "maintenance:purge"
)

// RoleChangedPayload describes a completed role change.
type RoleChangedPayload struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	PreviousRole string    `json:"previous_role"`
	NewRole      string    `json:"new_role"`
	ChangedAt    time.Time `json:"changed_at"`
}

// NewRoleChangedTask constructs the notification task.
func NewRoleChangedTask(payload RoleChangedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRoleChanged, data, asynq.MaxRetry(5)), nil
}

// MaintenancePayload tunes a purge run.
type MaintenancePayload struct {
	IdempotencyRetention time.Duration `json:"idempotency_retention"`
}

// NewMaintenanceTask constructs the purge task.
func NewMaintenanceTask(payload MaintenancePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMaintenance, data, asynq.MaxRetry(1)), nil
}
