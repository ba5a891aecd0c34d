// Package replay reads historical base-timeframe candles from SQLite and
// emits them at configurable speed for backtesting.
package replay

import (
	"context"
	"log"
	"time"

	"spotenginev1/internal/model"
	sqlitestore "spotenginev1/internal/store/sqlite"
)

// Replayer replays stored candles into a channel.
type Replayer struct {
	store *sqlitestore.Store
}

// New creates a Replayer backed by the SQLite store.
func New(store *sqlitestore.Store) *Replayer {
	return &Replayer{store: store}
}

// Run replays candles after fromTS into outCh, oldest first.
// speed controls playback: 1.0 = real-time gaps, 10.0 = 10x, 0 = as fast as
// possible. Returns the number of candles emitted.
func (r *Replayer) Run(ctx context.Context, fromTS int64, speed float64, outCh chan<- model.Candle) (int, error) {
	candles, err := r.store.LoadCandles(fromTS, 0)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		log.Println("[replay] no candles found in SQLite")
		return 0, nil
	}

	log.Printf("[replay] loaded %d candles, speed=%.1fx", len(candles), speed)

	var prevTS time.Time
	emitted := 0

	for _, c := range candles {
		if ctx.Err() != nil {
			log.Printf("[replay] cancelled after %d candles", emitted)
			return emitted, ctx.Err()
		}

		// Simulate time gaps between candles
		if speed > 0 && !prevTS.IsZero() {
			gap := c.OpenTime.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits on data holes
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return emitted, ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = c.OpenTime

		select {
		case <-ctx.Done():
			return emitted, ctx.Err()
		case outCh <- c:
			emitted++
		}
	}

	log.Printf("[replay] completed: %d candles replayed", emitted)
	return emitted, nil
}
