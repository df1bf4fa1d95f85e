package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmasight/pharmasight/internal/dashboard"
	jobmetrics "github.com/pharmasight/pharmasight/internal/jobs"
	"github.com/pharmasight/pharmasight/internal/metrics"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

var digestModes = []metrics.Mode{metrics.ModeDaily, metrics.ModeMonthly}

// GroupService is the slice of the dashboard service the digest needs.
type GroupService interface {
	FetchGroupForUser(ctx context.Context, username string, date time.Time) (dashboard.GroupData, error)
}

// GroupDigestJob runs the group aggregation for each portfolio owner and logs
// the outcome per pharmacy.
type GroupDigestJob struct {
	Service   GroupService
	Usernames []string
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewGroupDigestJob wires dependencies for the digest handler.
func NewGroupDigestJob(service GroupService, usernames []string, logger *slog.Logger, metrics *jobmetrics.Metrics) *GroupDigestJob {
	return &GroupDigestJob{
		Service:   service,
		Usernames: usernames,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes group digest tasks. A directory failure for one user does
// not stop the others; the joined error makes Asynq retry the task.
func (j *GroupDigestJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("group digest: handler not configured")
	}
	var payload GroupDigestPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("group digest: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	date := metrics.Day(j.now()).AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := metrics.ParseDate(payload.Date)
		if err != nil {
			return fmt.Errorf("group digest: %v: %w", err, asynq.SkipRetry)
		}
		date = parsed
	}
	users := payload.Usernames
	if len(users) == 0 {
		users = j.Usernames
	}

	run := j.metrics().Track(TaskGroupDigest)

	logger := j.logger().With(slog.String("date", metrics.FormatDate(date)))
	if len(users) == 0 {
		logger.Info("no digest users configured")
		return run.End(nil)
	}
	logger.Info("starting group digest", slog.Int("users", len(users)))

	started := j.now()
	var errs []error
	for _, username := range users {
		if err := j.digest(ctx, logger, username, date); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("completed group digest",
		slog.Int("users", len(users)),
		slog.Int("errors", len(errs)),
		slog.Duration("duration", j.now().Sub(started)))
	return run.End(errors.Join(errs...))
}

// digest fetches username's portfolio once and reports it in every mode.
func (j *GroupDigestJob) digest(ctx context.Context, logger *slog.Logger, username string, date time.Time) error {
	logger = logger.With(slog.String("username", username))
	data, err := j.Service.FetchGroupForUser(ctx, username, date)
	if err != nil {
		logger.Error("load group", slog.Any("error", err))
		return err
	}
	for _, mode := range digestModes {
		j.report(logger.With(slog.String("mode", string(mode))), dashboard.ComputeGroup(data, mode))
	}
	return nil
}

func (j *GroupDigestJob) report(logger *slog.Logger, report dashboard.GroupReport) {
	for _, entry := range report.Sorted() {
		if entry.Failed {
			logger.Warn("pharmacy unavailable",
				slog.Int64("pharmacy_id", entry.Pharmacy.ID),
				slog.String("pharmacy", entry.Pharmacy.Name))
			continue
		}
		logger.Info("pharmacy digest",
			slog.Int64("pharmacy_id", entry.Pharmacy.ID),
			slog.String("pharmacy", entry.Pharmacy.Name),
			slog.String("turnover", entry.Captions.Turnover),
			slog.String("growth", entry.Captions.Growth),
			slog.String("target", entry.Captions.Target),
			slog.String("achievement", entry.Captions.Achievement))
	}
	sum := report.Summary
	logger.Info("group digest",
		slog.String("turnover", dashboard.Money(sum.Turnover)),
		slog.String("growth", dashboard.Percent(sum.TurnoverGrowthPercent, true)),
		slog.Int("loaded", sum.Loaded),
		slog.Int("failed", sum.Failed))
	j.metrics().AddDigestPharmacies(string(report.Mode), sum.Loaded, sum.Failed)
}

func (j *GroupDigestJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGroupDigest))
	}
	return slog.Default().With(slog.String("job", TaskGroupDigest))
}

func (j *GroupDigestJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GroupDigestJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
