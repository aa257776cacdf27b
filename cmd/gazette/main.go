package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gazette-app/gazette/internal/app"
	"github.com/gazette-app/gazette/internal/audit"
	audithttp "github.com/gazette-app/gazette/internal/audit/http"
	"github.com/gazette-app/gazette/internal/auth"
	"github.com/gazette-app/gazette/internal/observability"
	"github.com/gazette-app/gazette/internal/platform/cache"
	"github.com/gazette-app/gazette/internal/platform/db"
	"github.com/gazette-app/gazette/internal/posts"
	"github.com/gazette-app/gazette/internal/publishers"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
	"github.com/gazette-app/gazette/internal/users"
	"github.com/gazette-app/gazette/internal/view"
	"github.com/gazette-app/gazette/jobs"
	"github.com/gazette-app/gazette/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		applied, err := migrations.Apply(ctx, dbpool)
		if err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Int("steps", applied))
	}

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "gazette_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	queue := jobs.NewClient(cache.QueueOpt(cfg.Redis()))
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cache.QueueOpt(cfg.Redis()))
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	userRepo := users.NewRepository(dbpool)
	rbacMiddleware := rbac.Middleware{Identities: userRepo, Logger: logger, Observer: metrics}
	rbacService := rbac.NewService(userRepo, jobs.NewRoleChangeNotifier(queue), auditLogger, logger)
	authorizationHandler := rbac.NewAuthorizationHandler(logger, rbacService, templates, csrfManager, rbacMiddleware)

	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), templates, csrfManager, rbacMiddleware)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	publisherService := publishers.NewService(publishers.NewRepository(dbpool), auditLogger, logger)
	publisherHandler := publishers.NewHandler(logger, publisherService, templates, csrfManager, rbacMiddleware)

	postService := posts.NewService(posts.NewRepository(dbpool), publisherService, posts.Options{
		PageSize:    cfg.PostsPageSize,
		Idempotency: idempotencyStore,
		Auditor:     auditLogger,
		Logger:      logger,
	})
	postHandler := posts.NewHandler(logger, postService, templates, csrfManager, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Templates:            templates,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		RBACMiddleware:       rbacMiddleware,
		AuthHandler:          authHandler,
		PostsHandler:         postHandler,
		PublishersHandler:    publisherHandler,
		AuthorizationHandler: authorizationHandler,
		AuditHandler:         auditHandler,
		JobHandler:           jobs.NewHandler(inspector, logger),
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
}
