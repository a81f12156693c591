package bluej

import (
	"context"
	"time"

	"github.com/bluej-social/bluej/store"
)

const (
	pruneEvery    = 5 * time.Minute
	postRetention = 48 * time.Hour
)

// runMaintenance is checked on every incoming event rather than on a
// dedicated timer, so both behaviors depend on event traffic.
func (b *BlueJ) runMaintenance(ctx context.Context) {
	now := b.now()

	if now.Sub(b.lastPrune) > pruneEvery {
		// The window resets before the delete completes, so a failed prune
		// still waits out the full interval.
		b.lastPrune = now
		b.queue.Submit(ctx, store.Mutation{
			Name:   store.MutPrunePosts,
			Params: map[string]any{"cutoff": now.Add(-postRetention)},
		})
		b.logger.Info("submitted prune of aged posts")
	}

	// Edge-triggered midnight detection: the shift fires on the first event
	// observed in hour 0 after an event in any other hour. A traffic gap
	// spanning midnight skips the shift for that day.
	if now.Hour() == 0 && b.lastHour != 0 {
		b.queue.Submit(ctx, store.Mutation{Name: store.MutShiftInteractionDays})
		b.logger.Info("submitted daily interaction shift")
	}
	b.lastHour = now.Hour()
}
