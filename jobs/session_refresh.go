package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/Brainless-Loco/bike-portfolio-admin/internal/jobs"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
)

// NewSessionRefreshHandler processes TaskSessionRefresh tasks: it
// recompiles the principal and rewrites every live session record.
func NewSessionRefreshHandler(compiler *rbac.Compiler, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SessionRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.UserID == "" {
			return asynq.SkipRetry
		}
		tracker := metrics.Track("session_refresh")
		if err := compiler.Refresh(ctx, payload.UserID); err != nil {
			if logger != nil {
				logger.Error("session refresh", slog.String("user_id", payload.UserID), slog.Any("error", err))
			}
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
