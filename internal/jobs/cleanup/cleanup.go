package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type expiredRentalPruner interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job prunes rental rows whose expiry passed longer than retention ago.
// Access checks already treat expired rentals as absent, so pruning is pure
// hygiene; the grace window keeps fresh expiries around for support lookups.
type Job struct {
	unlocks   expiredRentalPruner
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewRentalCleanupJob(unlocks expiredRentalPruner, retention time.Duration, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		unlocks:   unlocks,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.unlocks == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.unlocks.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune expired rentals: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("expired rentals pruned", zap.Int64("deleted", deleted))
	}

	return nil
}
