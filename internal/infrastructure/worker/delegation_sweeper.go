package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/employee-portal/internal/application/port"
)

// DelegationSweeperConfig holds configuration for the delegation sweeper
type DelegationSweeperConfig struct {
	Interval time.Duration
}

// DefaultDelegationSweeperConfig returns default configuration
func DefaultDelegationSweeperConfig() DelegationSweeperConfig {
	return DelegationSweeperConfig{Interval: 15 * time.Minute}
}

// SweeperStats reports what the sweeper has done so far
type SweeperStats struct {
	Runs      int
	Cleared   int
	LastRun   time.Time
	LastError error
}

// DelegationSweeper periodically removes expired delegations from the
// directory. Routing already ignores them; the sweep keeps records tidy.
type DelegationSweeper struct {
	config    DelegationSweeperConfig
	employees port.EmployeeRepository
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	stats     SweeperStats
}

// NewDelegationSweeper creates a new delegation sweeper
func NewDelegationSweeper(config DelegationSweeperConfig, employees port.EmployeeRepository, logger *zap.Logger) *DelegationSweeper {
	if config.Interval <= 0 {
		config = DefaultDelegationSweeperConfig()
	}
	return &DelegationSweeper{
		config:    config,
		employees: employees,
		logger:    logger,
		now:       time.Now,
	}
}

// Start sweeps once and then on every tick until stopped
func (w *DelegationSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("delegation sweeper already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("DelegationSweeper started", zap.Duration("interval", w.config.Interval))

	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *DelegationSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("DelegationSweeper stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("cleared", stats.Cleared))
	return nil
}

// Name returns the worker name for identification
func (w *DelegationSweeper) Name() string {
	return "DelegationSweeper"
}

// Stats returns a snapshot of the sweeper counters
func (w *DelegationSweeper) Stats() SweeperStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// SweepOnce clears every delegation that has expired by now
func (w *DelegationSweeper) SweepOnce(ctx context.Context) (int, error) {
	now := w.now()
	cleared, err := w.employees.ClearExpiredDelegations(ctx, now)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.Cleared += cleared
	w.stats.LastRun = now
	w.stats.LastError = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Failed to clear expired delegations", zap.Error(err))
		return cleared, err
	}
	if cleared > 0 {
		w.logger.Info("Expired delegations cleared", zap.Int("count", cleared))
	}
	return cleared, nil
}

func (w *DelegationSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	_, _ = w.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.SweepOnce(ctx)
		}
	}
}
