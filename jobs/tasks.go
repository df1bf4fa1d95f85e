package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGroupDigest computes every configured portfolio's group view.
	TaskGroupDigest = "dashboard:group_digest"
)

// GroupDigestPayload selects the portfolios and day to digest. Empty fields
// fall back to the worker's configured users and to yesterday.
type GroupDigestPayload struct {
	Usernames []string `json:"usernames,omitempty"`
	Date      string   `json:"date,omitempty"`
}

// NewGroupDigestTask constructs an Asynq task for the group digest.
func NewGroupDigestTask(usernames []string, date time.Time) (*asynq.Task, error) {
	payload := GroupDigestPayload{}
	for _, u := range usernames {
		if u = strings.TrimSpace(u); u != "" {
			payload.Usernames = append(payload.Usernames, u)
		}
	}
	if !date.IsZero() {
		payload.Date = metrics.FormatDate(date)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode digest payload: %w", err)
	}
	return asynq.NewTask(TaskGroupDigest, data), nil
}
