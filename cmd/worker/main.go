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

	"github.com/pharmasight/pharmasight/internal/app"
	"github.com/pharmasight/pharmasight/internal/dashboard"
	jobmetrics "github.com/pharmasight/pharmasight/internal/jobs"
	"github.com/pharmasight/pharmasight/internal/observability"
	"github.com/pharmasight/pharmasight/internal/upstream"
	"github.com/pharmasight/pharmasight/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	metrics := observability.NewMetrics()

	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		Timeout: cfg.UpstreamTimeout,
	}, upstream.WithObserver(metrics), upstream.WithLogger(logger))
	if err != nil {
		logger.Error("init upstream client", slog.Any("error", err))
		os.Exit(1)
	}

	service := dashboard.NewService(client,
		dashboard.WithDirectory(client),
		dashboard.WithLogger(logger),
		dashboard.WithConcurrency(cfg.GroupConcurrency),
		dashboard.WithFailureRecorder(metrics),
	)
	digestJob := jobs.NewGroupDigestJob(service, cfg.DigestUsers, logger, jobmetrics.NewMetrics(metrics.Registerer()))

	queueOpt, err := cfg.QueueRedis()
	if err != nil {
		logger.Error("queue redis", slog.Any("error", err))
		os.Exit(1)
	}

	var schedules []jobs.Schedule
	if cfg.DigestCron != "" && len(cfg.DigestUsers) > 0 {
		digestTask, err := jobs.NewGroupDigestTask(nil, time.Time{})
		if err != nil {
			logger.Error("build digest task", slog.Any("error", err))
			os.Exit(1)
		}
		schedules = append(schedules, jobs.Schedule{Cron: cfg.DigestCron, Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	} else {
		logger.Info("group digest schedule disabled", slog.Int("users", len(cfg.DigestUsers)))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: queueOpt,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGroupDigest, Handler: digestJob.Handle},
		},
		Schedules: schedules,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
