package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/suryaepc/suryaepc/internal/verification"
)

// NewVerificationSyncHandler scans the recent transaction window and
// creates missing verification records. The sync is idempotent, so an
// overlapping lookback window across runs is safe.
func NewVerificationSyncHandler(svc *verification.Service, lookback time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		since := time.Now().UTC().Add(-lookback)
		created, err := svc.Sync(ctx, since)
		if err != nil {
			logger.Error("verification sync failed", slog.Any("error", err))
			return err
		}
		logger.Info("verification sync completed",
			slog.Int("created", created), slog.Time("since", since))
		return nil
	}
}
