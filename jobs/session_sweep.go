package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/Brainless-Loco/bike-portfolio-admin/internal/jobs"
)

// NewSessionSweepHandler deletes session audit rows whose expiry has
// passed. The Redis records expire on their own; this keeps the postgres
// mirror from growing without bound.
func NewSessionSweepHandler(pool *pgxpool.Pool, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("session_sweep")
		tag, err := pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
		if err != nil {
			if logger != nil {
				logger.Error("session sweep", slog.Any("error", err))
			}
			return tracker.End(err)
		}
		if logger != nil && tag.RowsAffected() > 0 {
			logger.Info("session sweep", slog.Int64("deleted", tag.RowsAffected()))
		}
		return tracker.End(nil)
	}
}
