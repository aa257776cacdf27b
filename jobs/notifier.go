package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gazette-app/gazette/internal/rbac"
)

// Enqueuer is the subset of the asynq client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RoleChangeNotifier queues a notification email for every role change.
type RoleChangeNotifier struct {
	queue Enqueuer
	now   func() time.Time
}

// NewRoleChangeNotifier constructs a notifier on top of queue.
func NewRoleChangeNotifier(queue Enqueuer) *RoleChangeNotifier {
	return &RoleChangeNotifier{queue: queue, now: time.Now}
}

var _ rbac.RoleChangeNotifier = (*RoleChangeNotifier)(nil)

// NotifyRoleChanged enqueues TaskTypeRoleChanged for target.
func (n *RoleChangeNotifier) NotifyRoleChanged(ctx context.Context, target rbac.Identity, previous rbac.Role) error {
	if n == nil || n.queue == nil {
		return nil
	}
	task, err := NewRoleChangedTask(RoleChangedPayload{
		UserID:       target.ID,
		Email:        target.Email,
		PreviousRole: previous.String(),
		NewRole:      target.Role.String(),
		ChangedAt:    n.now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = n.queue.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}
