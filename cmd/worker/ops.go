package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gazette-app/gazette/jobs"
)

// jobsOps wraps manual queue management helpers.
type jobsOps struct {
	queue     jobs.Enqueuer
	inspector jobs.QueueInspector
	closers   []func() error
}

func newJobsOps(opt asynq.RedisClientOpt) *jobsOps {
	client := asynq.NewClient(opt)
	inspector := asynq.NewInspector(opt)
	return &jobsOps{queue: client, inspector: inspector, closers: []func() error{inspector.Close, client.Close}}
}

// Close releases underlying resources.
func (o *jobsOps) Close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a task that can run without caller supplied data.
func (o *jobsOps) Trigger(ctx context.Context, name string, retention time.Duration) (*asynq.TaskInfo, error) {
	if o == nil || o.queue == nil {
		return nil, errors.New("jobs ops: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskTypeMaintenance:
		task, err = jobs.NewMaintenanceTask(jobs.MaintenancePayload{IdempotencyRetention: retention})
	default:
		return nil, fmt.Errorf("jobs ops: unsupported task %s", name)
	}
	if err != nil {
		return nil, err
	}
	return o.queue.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault))
}

type queueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the default queue depth.
func (o *jobsOps) InspectQueue() (queueStats, error) {
	if o == nil || o.inspector == nil {
		return queueStats{}, errors.New("jobs ops: inspector not configured")
	}
	info, err := o.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return queueStats{}, err
	}
	stats := queueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}
