package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmasight/pharmasight/internal/app"
	"github.com/pharmasight/pharmasight/internal/dashboard"
	"github.com/pharmasight/pharmasight/internal/dashboard/export"
	dashboardhttp "github.com/pharmasight/pharmasight/internal/dashboard/http"
	"github.com/pharmasight/pharmasight/internal/observability"
	"github.com/pharmasight/pharmasight/internal/platform/cache"
	"github.com/pharmasight/pharmasight/internal/upstream"
	"github.com/pharmasight/pharmasight/jobs"
)

const viewSweepInterval = time.Minute

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client, err := upstream.NewClient(upstream.Config{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		Timeout: cfg.UpstreamTimeout,
	}, upstream.WithObserver(metrics), upstream.WithLogger(logger))
	if err != nil {
		return err
	}

	var source upstream.Source = client
	if cfg.CacheEnabled() {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, serving uncached", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			responseCache := upstream.NewCache(redisClient, cfg.UpstreamCacheTTL)
			if err := responseCache.ListenForInvalidation(ctx, upstream.BumpChannel); err != nil {
				logger.Warn("cache invalidation listener", slog.Any("error", err))
			}
			source = upstream.NewCachedSource(client, responseCache)
			logger.Info("upstream cache enabled", slog.Duration("ttl", cfg.UpstreamCacheTTL))
		}
	}

	service := dashboard.NewService(source,
		dashboard.WithDirectory(source),
		dashboard.WithLogger(logger),
		dashboard.WithConcurrency(cfg.GroupConcurrency),
		dashboard.WithFailureRecorder(metrics),
	)
	views := dashboard.NewViews(service, cfg.ViewIdleTTL)
	go views.Run(ctx, viewSweepInterval)

	var pdf dashboardhttp.PDFService
	exporter := &export.PDFExporter{Endpoint: cfg.GotenbergURL, Client: &http.Client{Timeout: time.Minute}}
	if exporter.Enabled() {
		pdf = exporter
		if err := exporter.Ping(ctx); err != nil {
			logger.Warn("gotenberg not reachable, pdf export will fail until it is", slog.Any("error", err))
		}
	}
	dashboardHandler := dashboardhttp.NewHandler(logger, service, views, pdf)
	dashboardHandler.WithTimeout(cfg.AppRequestTimeout)

	var jobHandler *jobs.Handler
	if opt, err := cfg.QueueRedis(); err != nil {
		logger.Warn("jobs health disabled", slog.Any("error", err))
		jobHandler = jobs.NewHandler(nil, logger)
	} else {
		inspector := asynq.NewInspector(opt)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("upstream", cfg.UpstreamBaseURL))
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
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
