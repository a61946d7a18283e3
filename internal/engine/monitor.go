package engine

import (
	"context"
	"time"
)

// DefaultCycleInterval matches the original monitoring cadence.
const DefaultCycleInterval = 5 * time.Minute

// Monitor runs ingestion cycles on a fixed interval until the context is
// cancelled. Cycles never overlap: ticks that arrive while a cycle is
// running are dropped, not queued. The first cycle runs immediately.
func (o *Orchestrator) Monitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCycleInterval
	}

	o.logger.Info("monitoring started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				o.logger.Info("monitoring stopped")
				return nil
			}
			o.logger.Error("ingestion cycle failed", "error", err)
		}

		// Discard any tick that fired during the cycle so the next run
		// starts a full interval from now, not immediately.
		select {
		case <-ticker.C:
		default:
		}
		ticker.Reset(interval)

		select {
		case <-ctx.Done():
			o.logger.Info("monitoring stopped")
			return nil
		case <-ticker.C:
		}
	}
}
