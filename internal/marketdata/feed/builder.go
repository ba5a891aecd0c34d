package feed

import (
	"sync"

	"spotenginev1/internal/model"
)

// Builder aggregates trade ticks into base-timeframe candles. A tick landing
// in a new bucket completes the forming candle and starts the next one.
// Completed candles are kept in a bounded rolling window.
type Builder struct {
	mu        sync.Mutex
	tf        model.Timeframe
	forming   *model.Candle
	completed []model.Candle
	maxKeep   int
}

// NewBuilder creates a candle builder for the given base timeframe, keeping
// at most maxKeep completed candles.
func NewBuilder(tf model.Timeframe, maxKeep int) *Builder {
	if maxKeep < 1 {
		maxKeep = 1
	}
	return &Builder{tf: tf, maxKeep: maxKeep}
}

// AddTick folds one tick into the forming candle. Returns the completed
// candle and true when the tick rolled the bucket.
func (b *Builder) AddTick(t model.Tick) (model.Candle, bool) {
	if t.Price <= 0 {
		return model.Candle{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bucket := b.tf.Bucket(t.TS)

	if b.forming == nil {
		b.forming = &model.Candle{
			OpenTime: bucket,
			Open:     t.Price, High: t.Price, Low: t.Price, Close: t.Price,
			Volume: t.Size,
		}
		return model.Candle{}, false
	}

	if bucket.After(b.forming.OpenTime) {
		done := *b.forming
		b.completed = append(b.completed, done)
		if len(b.completed) > b.maxKeep {
			b.completed = b.completed[len(b.completed)-b.maxKeep:]
		}
		b.forming = &model.Candle{
			OpenTime: bucket,
			Open:     t.Price, High: t.Price, Low: t.Price, Close: t.Price,
			Volume: t.Size,
		}
		return done, true
	}

	// Late ticks for an already-completed bucket are folded into the forming
	// candle rather than rewriting history.
	c := b.forming
	if t.Price > c.High {
		c.High = t.Price
	}
	if t.Price < c.Low {
		c.Low = t.Price
	}
	c.Close = t.Price
	c.Volume += t.Size
	return model.Candle{}, false
}

// Completed returns up to limit most recent completed candles, oldest first.
// limit <= 0 returns all.
func (b *Builder) Completed(limit int) []model.Candle {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.completed)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Candle, n)
	copy(out, b.completed[len(b.completed)-n:])
	return out
}
