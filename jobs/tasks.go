package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/app"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionRefresh recompiles a principal's effective permissions
	// into every live session record.
	TaskSessionRefresh = "session:refresh"
	// TaskSessionSweep prunes expired session rows.
	TaskSessionSweep = "session:sweep"
)

// SessionRefreshPayload identifies the principal to refresh.
type SessionRefreshPayload struct {
	UserID string `json:"user_id"`
}

// NewSessionRefreshTask constructs an Asynq task.
func NewSessionRefreshTask(payload SessionRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionRefresh, data), nil
}

// NewSessionSweepTask constructs the sweep task; it carries no payload.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}

// Enqueuer submits tasks via the Asynq client. It implements
// rbac.Refresher so permission mutations can schedule recompiles without
// depending on the jobs package.
type Enqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(client *asynq.Client, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger}
}

// EnqueueSessionRefresh schedules a session refresh for the user.
func (e *Enqueuer) EnqueueSessionRefresh(ctx context.Context, userID string) error {
	if app.InTestMode() {
		return nil
	}
	task, err := NewSessionRefreshTask(SessionRefreshPayload{UserID: userID})
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return err
	}
	if e.logger != nil {
		e.logger.Debug("enqueued session refresh", slog.String("user_id", userID))
	}
	return nil
}
