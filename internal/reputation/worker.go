package reputation

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotWorker periodically records every rated provider's current
// rating. The snapshots feed the rating-drop rule of the block policy.
type SnapshotWorker struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewSnapshotWorker creates a rating snapshot worker. interval is
// typically 24 hours in production.
func NewSnapshotWorker(service *Service, interval time.Duration, logger *slog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &SnapshotWorker{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the snapshot loop. Call in a goroutine.
func (w *SnapshotWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on start
	w.snapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.snapshot(ctx)
		}
	}
}

// Stop signals the worker to stop.
func (w *SnapshotWorker) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}

func (w *SnapshotWorker) snapshot(ctx context.Context) {
	n, err := w.service.SnapshotRatings(ctx)
	if err != nil {
		w.logger.Warn("rating snapshot failed", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("rating snapshot completed", "providers", n)
	}
}

// SweepWorker periodically runs the block policy over all eligible
// providers, blocking or warning low-rated ones.
type SweepWorker struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewSweepWorker creates an auto-block sweep worker.
func NewSweepWorker(service *Service, interval time.Duration, logger *slog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SweepWorker{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *SweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			blocked, warned, err := w.service.SweepLowRated(ctx)
			if err != nil {
				w.logger.Warn("block policy sweep failed", "error", err)
				continue
			}
			if blocked > 0 || warned > 0 {
				w.logger.Info("block policy sweep completed", "blocked", blocked, "warned", warned)
			}
		}
	}
}

// Stop signals the worker to stop.
func (w *SweepWorker) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
}
