package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/gazette-app/gazette/internal/app"
	"github.com/gazette-app/gazette/internal/auth"
	jobmetrics "github.com/gazette-app/gazette/internal/jobs"
	"github.com/gazette-app/gazette/internal/platform/cache"
	"github.com/gazette-app/gazette/internal/platform/db"
	"github.com/gazette-app/gazette/internal/shared"
	"github.com/gazette-app/gazette/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	trigger := pflag.String("trigger", "", "enqueue a task by type and exit (e.g. "+jobs.TaskTypeMaintenance+")")
	stats := pflag.Bool("stats", false, "print default queue statistics and exit")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if *trigger != "" || *stats {
		if err := runOps(ctx, cfg, *trigger, *stats); err != nil {
			logger.Error("jobs ops", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	roleChanged := &jobs.RoleChangedJob{
		Mailer:  jobs.LogMailer{Logger: logger},
		From:    cfg.MailFrom,
		Logger:  logger,
		Metrics: metrics,
	}
	maintenance := &jobs.MaintenanceJob{
		Sessions: auth.NewRepository(pool),
		Keys:     shared.NewIdempotencyStore(pool),
		Logger:   logger,
		Metrics:  metrics,
	}
	maintenanceTask, err := jobs.NewMaintenanceTask(jobs.MaintenancePayload{IdempotencyRetention: cfg.IdempotencyTTL})
	if err != nil {
		logger.Error("build maintenance task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cache.QueueOpt(cfg.Redis()),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRoleChanged, Handler: roleChanged.Handle},
			{Type: jobs.TaskTypeMaintenance, Handler: maintenance.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.MaintenanceCron, Task: maintenanceTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func runOps(ctx context.Context, cfg *app.Config, trigger string, stats bool) error {
	ops := newJobsOps(cache.QueueOpt(cfg.Redis()))
	defer ops.Close()

	if trigger != "" {
		info, err := ops.Trigger(ctx, trigger, cfg.IdempotencyTTL)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	}
	if stats {
		s, err := ops.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
	}
	return nil
}
