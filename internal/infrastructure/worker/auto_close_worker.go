package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/travel-desk/internal/application/service"
)

// AutoCloseWorkerConfig holds configuration for the auto-close worker
type AutoCloseWorkerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	// SweepTimeout bounds a single pass
	SweepTimeout time.Duration
}

// DefaultAutoCloseWorkerConfig returns default configuration
func DefaultAutoCloseWorkerConfig() AutoCloseWorkerConfig {
	return AutoCloseWorkerConfig{
		Interval:     time.Hour,
		RunOnStart:   true,
		SweepTimeout: 5 * time.Minute,
	}
}

// AutoCloseStats reports what the worker has done since it started
type AutoCloseStats struct {
	Runs      int                 `json:"runs"`
	Closed    int                 `json:"closed"`
	LastRun   time.Time           `json:"last_run"`
	LastSweep service.SweepResult `json:"last_sweep"`
	LastError string              `json:"last_error,omitempty"`
}

// AutoCloseWorker runs the auto-close sweep on a ticker
type AutoCloseWorker struct {
	config  AutoCloseWorkerConfig
	sweeper service.AutoCloseService
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.RWMutex
	stats AutoCloseStats
}

// NewAutoCloseWorker creates a new auto-close worker
func NewAutoCloseWorker(config AutoCloseWorkerConfig, sweeper service.AutoCloseService, logger *zap.Logger) *AutoCloseWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultAutoCloseWorkerConfig().Interval
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = DefaultAutoCloseWorkerConfig().SweepTimeout
	}
	return &AutoCloseWorker{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
		now:     time.Now,
	}
}

// Name returns the worker name for identification
func (w *AutoCloseWorker) Name() string {
	return "auto-close"
}

// Stats returns a copy of the worker counters
func (w *AutoCloseWorker) Stats() AutoCloseStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// Run sweeps on every tick until ctx is cancelled
func (w *AutoCloseWorker) Run(ctx context.Context) error {
	w.logger.Info("Auto-close worker running",
		zap.Duration("interval", w.config.Interval),
		zap.Bool("run_on_start", w.config.RunOnStart))

	if w.config.RunOnStart {
		w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats := w.Stats()
			w.logger.Info("Auto-close worker stopped",
				zap.Int("runs", stats.Runs),
				zap.Int("closed", stats.Closed))
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and records its outcome
func (w *AutoCloseWorker) RunOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, w.config.SweepTimeout)
	defer cancel()

	now := w.now()
	res, err := w.sweeper.Sweep(sweepCtx, now)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.Closed += res.Closed
	w.stats.LastRun = now
	w.stats.LastSweep = res
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Auto-close sweep failed", zap.Error(err))
		return
	}
	if res.Closed > 0 || res.Failed > 0 {
		w.logger.Info("Auto-close sweep",
			zap.Int("scanned", res.Scanned),
			zap.Int("closed", res.Closed),
			zap.Int("failed", res.Failed))
	}
}
