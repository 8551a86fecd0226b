package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/suryaepc/suryaepc/internal/ledger"
)

// NewLedgerIntegrityHandler walks every stock entry and logs invariant
// violations: negative remaining stock and lots exceeding their original
// length. Violations are reported, never auto-corrected; fixing stock is
// an explicit adjustment transaction.
func NewLedgerIntegrityHandler(svc *ledger.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		entries, err := svc.ListEntries(ctx)
		if err != nil {
			logger.Error("ledger integrity: list entries", slog.Any("error", err))
			return err
		}

		var violations atomic.Int64
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, entry := range entries {
			entry := entry
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				for _, problem := range entry.IntegrityProblems() {
					violations.Add(1)
					logger.Warn("ledger integrity violation",
						slog.String("component", entry.ComponentID.String()),
						slog.String("variant", entry.VariantKey),
						slog.String("problem", problem))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if n := violations.Load(); n > 0 {
			return fmt.Errorf("ledger integrity: %d violation(s) found across %d entries", n, len(entries))
		}
		logger.Info("ledger integrity scan clean", slog.Int("entries", len(entries)))
		return nil
	}
}
