package jobs

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Client submits dashboard tasks to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient opens a queue client over redisOpts.
func NewClient(redisOpts asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueGroupDigest enqueues a group digest for usernames on date. Empty
// arguments defer to the worker's defaults.
func (c *Client) EnqueueGroupDigest(ctx context.Context, usernames []string, date time.Time) (*asynq.TaskInfo, error) {
	task, err := NewGroupDigestTask(usernames, date)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
