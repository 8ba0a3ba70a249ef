package janitor

import (
	"context"
	"time"

	"harpoon/pkg/logging"
)

const (
	defaultInterval = 6 * time.Hour
	defaultMaxAge   = 90 * 24 * time.Hour
)

// Store is the deletion slice of the draft store.
type Store interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type Config struct {
	Store    Store
	Logger   logging.Logger
	Interval time.Duration
	MaxAge   time.Duration
}

// Janitor removes terminal drafts past the retention age. Drafts are never
// deleted any other way.
type Janitor struct {
	store    Store
	logger   logging.Logger
	interval time.Duration
	maxAge   time.Duration
}

func New(cfg Config) *Janitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Janitor{
		store:    cfg.Store,
		logger:   cfg.Logger,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Start runs retention sweeps until the context is cancelled. Blocks.
func (j *Janitor) Start(ctx context.Context) {
	j.RunOnce(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single retention sweep.
func (j *Janitor) RunOnce(ctx context.Context) {
	deleted, err := j.store.DeleteOlderThan(ctx, j.maxAge)
	if err != nil {
		j.logger.WithError(err).Warn("Janitor: retention sweep failed")
		return
	}
	if deleted > 0 {
		j.logger.WithFields(logging.Fields{
			"deleted": deleted,
			"max_age": j.maxAge.String(),
		}).Info("Janitor: old drafts removed")
	}
}
