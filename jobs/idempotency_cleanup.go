package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/suryaepc/suryaepc/internal/shared"
)

// NewIdempotencyCleanupHandler prunes idempotency keys older than the
// retention window.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup completed", slog.Duration("retention", retention))
		return nil
	}
}
