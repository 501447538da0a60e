package crank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"openamm/internal/pool"
)

// RunConfig holds runtime settings for the crank.
type RunConfig struct {
	Pools             []common.Address
	Cranker           common.Address
	Interval          time.Duration
	Cycles            uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	CheckpointPath    string
	CheckpointEnabled bool
}

// Refresher is the engine operation the crank drives.
type Refresher interface {
	Refresh(ctx context.Context, addr, cranker common.Address) (pool.RefreshResult, error)
}

// CycleReport summarizes one pass over every pool.
type CycleReport struct {
	Cycle        uint64
	Refreshed    int
	Paused       int
	Skipped      int
	CrankerBase  uint64
	CrankerQuote uint64
}

// Runner refreshes pools one after another on a fixed interval.
type Runner struct {
	cfg        RunConfig
	engine     Refresher
	logger     *zap.Logger
	checkpoint *CheckpointStore
	state      Checkpoint
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, engine Refresher, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		engine:     engine,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes cycles until Cycles is reached or ctx is done. A zero Cycles
// runs until cancellation.
func (r *Runner) Run(ctx context.Context) error {
	if r.engine == nil {
		return fmt.Errorf("engine is nil")
	}
	if len(r.cfg.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		r.state = cp
		r.logger.Info("resume from checkpoint", zap.Uint64("last_cycle", cp.LastCycle))
	}

	for n := uint64(0); r.cfg.Cycles == 0 || n < r.cfg.Cycles; n++ {
		if n > 0 && r.cfg.Interval > 0 {
			timer := time.NewTimer(r.cfg.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := r.RunOnce(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunOnce refreshes every configured pool once. Paused pools are skipped and
// left for an operator restart.
func (r *Runner) RunOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{Cycle: r.state.LastCycle + 1}
	for _, addr := range r.cfg.Pools {
		res, err := r.refreshWithRetry(ctx, addr)
		if errors.Is(err, pool.ErrMarketMakingPaused) {
			report.Skipped++
			r.logger.Info("pool paused, skipping", zap.String("pool", addr.Hex()))
			continue
		}
		if err != nil {
			return report, fmt.Errorf("refresh %s: %w", addr.Hex(), err)
		}
		if res.Paused {
			report.Paused++
		} else {
			report.Refreshed++
		}
		report.CrankerBase += res.CrankerBase
		report.CrankerQuote += res.CrankerQuote
	}

	r.state.LastCycle = report.Cycle
	r.state.CrankerBase += report.CrankerBase
	r.state.CrankerQuote += report.CrankerQuote
	if err := r.checkpoint.Save(r.state); err != nil {
		return report, err
	}

	r.logger.Info("cycle complete",
		zap.Uint64("cycle", report.Cycle),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("paused", report.Paused),
		zap.Int("skipped", report.Skipped),
		zap.Uint64("cranker_base", report.CrankerBase),
		zap.Uint64("cranker_quote", report.CrankerQuote),
	)
	return report, nil
}

func (r *Runner) refreshWithRetry(ctx context.Context, addr common.Address) (pool.RefreshResult, error) {
	var res pool.RefreshResult
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, isAdapterFailure, func(ctx context.Context) error {
		var err error
		res, err = r.engine.Refresh(ctx, addr, r.cfg.Cranker)
		if err != nil && isAdapterFailure(err) {
			r.logger.Warn("refresh failed", zap.Error(err), zap.String("pool", addr.Hex()))
		}
		return err
	})
	return res, err
}

func isAdapterFailure(err error) bool {
	return errors.Is(err, pool.ErrExternalAdapterFailure)
}
