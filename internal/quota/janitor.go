package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/skillgap/internal/logger"
)

// Cleaner removes expired usage records.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Janitor periodically purges expired free analysis records.
type Janitor struct {
	cleaner Cleaner
	poll    time.Duration
	log     *zap.Logger
}

// NewJanitor creates a Janitor. If pollInterval is <= 0, it defaults to 1h.
func NewJanitor(cleaner Cleaner, pollInterval time.Duration, l *zap.Logger) *Janitor {
	if pollInterval <= 0 {
		pollInterval = time.Hour
	}
	return &Janitor{cleaner: cleaner, poll: pollInterval, log: logger.OrNop(l)}
}

// Run cleans up once immediately and then on every interval until ctx is
// cancelled.
func (j *Janitor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
			j.log.Error("free analysis cleanup failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(j.poll):
		}
	}
}

// RunOnce performs a single cleanup pass and returns the number of removed
// records.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	n, err := j.cleaner.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.log.Info("expired free analyses removed", zap.Int64("count", n))
	}
	return n, nil
}
