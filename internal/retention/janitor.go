// Package retention implements the draft retention policy. Unsent
// drafts are working copies, not records: a janitor goroutine sweeps
// the draft store on an interval and removes anything older than the
// configured window. The cleanup endpoint triggers the same sweep on
// demand.
package retention

import (
	"context"
	"time"

	"github.com/blociq/comms-engine/pkg/contracts"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often the janitor sweeps when no interval is
// configured.
const DefaultInterval = time.Hour

// Janitor periodically purges expired drafts.
type Janitor struct {
	drafts   contracts.DraftStore
	days     int
	interval time.Duration
}

// NewJanitor creates a janitor that removes drafts older than the given
// number of days, sweeping on the given interval.
func NewJanitor(drafts contracts.DraftStore, days int, interval time.Duration) *Janitor {
	if interval < time.Minute {
		interval = DefaultInterval
	}
	return &Janitor{drafts: drafts, days: days, interval: interval}
}

// Start runs the janitor in a background goroutine. It blocks until ctx
// is canceled.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Dur("interval", j.interval).
		Int("retention_days", j.days).
		Msg("Draft retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Draft retention janitor stopped")
			return
		case <-ticker.C:
			j.runCycle(ctx)
		}
	}
}

// runCycle performs one retention sweep.
func (j *Janitor) runCycle(ctx context.Context) {
	start := time.Now()
	removed, err := j.drafts.CleanupOlderThan(ctx, j.days)
	if err != nil {
		log.Warn().Err(err).Msg("Draft retention sweep failed")
		return
	}
	if removed > 0 {
		log.Info().
			Int("removed", removed).
			Int("retention_days", j.days).
			Dur("elapsed", time.Since(start)).
			Msg("Draft retention sweep complete")
	}
}
