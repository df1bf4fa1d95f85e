package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/pharmasight/pharmasight/internal/metrics"
	"github.com/pharmasight/pharmasight/jobs"
)

// Enqueuer is the slice of the Asynq client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// QueueInspector is the slice of the Asynq inspector used for stats.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI is the operator's handle on the digest queue.
type JobsCLI struct {
	client    Enqueuer
	inspector QueueInspector
}

var errNotConnected = errors.New("jobs cli: queue not connected")

// NewJobsCLI connects a client and inspector to the queue's Redis.
func NewJobsCLI(redisOpts asynq.RedisConnOpt) *JobsCLI {
	return &JobsCLI{
		client:    asynq.NewClient(redisOpts),
		inspector: asynq.NewInspector(redisOpts),
	}
}

// Close closes both connections and reports every failure.
func (c *JobsCLI) Close() error {
	var errs []error
	for _, closer := range []interface{ Close() error }{c.inspector, c.client} {
		if closer == nil {
			continue
		}
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// taskBuilders lists the jobs an operator may enqueue by hand.
var taskBuilders = map[string]func(usernames []string, date time.Time) (*asynq.Task, error){
	jobs.TaskGroupDigest: jobs.NewGroupDigestTask,
}

// Trigger enqueues the named job. Empty usernames and a zero date leave the
// choice to the worker.
func (c *JobsCLI) Trigger(ctx context.Context, name string, usernames []string, date time.Time) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errNotConnected
	}
	build, ok := taskBuilders[name]
	if !ok {
		return nil, fmt.Errorf("jobs cli: unknown job %q", name)
	}
	task, err := build(usernames, date)
	if err != nil {
		return nil, fmt.Errorf("jobs cli: build %s: %w", name, err)
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

// QueueStats is a point-in-time view of the default queue.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reads the default queue's counters.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errNotConnected
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, fmt.Errorf("jobs cli: queue info: %w", err)
	}
	if info == nil {
		return QueueStats{Queue: jobs.QueueDefault}, nil
	}
	return QueueStats{
		Queue:     jobs.QueueDefault,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
	}, nil
}

// ListScheduled returns up to size tasks waiting for their process time.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errNotConnected
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// NewJobsCommand builds the "jobs" command tree. open is called lazily so
// help output never needs a Redis connection.
func NewJobsCommand(open func() (*JobsCLI, error)) *cobra.Command {
	root := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var (
		users string
		date  string
	)
	trigger := &cobra.Command{
		Use:   "trigger <name>",
		Short: "Enqueue a job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var day time.Time
			if date != "" {
				parsed, err := metrics.ParseDate(date)
				if err != nil {
					return err
				}
				day = parsed
			}
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			info, err := c.Trigger(cmd.Context(), args[0], splitList(users), day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().StringVar(&users, "users", "", "comma separated usernames (default: DIGEST_USERS)")
	trigger.Flags().StringVar(&date, "date", "", "day to digest as YYYY-MM-DD (default: yesterday)")

	var size int
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth and scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := open()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			st, err := c.InspectQueue()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n", st.Queue, st.Pending, st.Active, st.Scheduled, st.Retry)
			scheduled, err := c.ListScheduled(size)
			if err != nil {
				return err
			}
			for _, info := range scheduled {
				fmt.Fprintf(out, "scheduled %s id=%s at=%s\n", info.Type, info.ID, info.NextProcessAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
	stats.Flags().IntVar(&size, "size", 10, "scheduled tasks to list")

	root.AddCommand(trigger, stats)
	return root
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
