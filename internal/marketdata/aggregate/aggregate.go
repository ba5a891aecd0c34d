// Package aggregate resamples base-timeframe candles into coarser
// timeframes by fixed-width time buckets. Aggregation is a pure function of
// the input window: within a bucket open = earliest open, close = latest
// close, high = max high, low = min low, volume = sum. The trailing bucket is
// emitted even when incomplete — callers must treat the last candle of a
// higher timeframe as potentially still forming.
package aggregate

import (
	"log"
	"sort"

	"spotenginev1/internal/model"
)

// Aggregate merges base candles into tf-width buckets, oldest first.
// Input is expected in ascending time order but gaps are tolerated.
// Malformed candles (high < low etc.) are skipped, not fatal.
func Aggregate(candles []model.Candle, tf model.Timeframe) []model.Candle {
	if len(candles) == 0 {
		return nil
	}

	buckets := make(map[int64]*model.Candle, len(candles))
	order := make([]int64, 0, len(candles))

	for i := range candles {
		c := &candles[i]
		if !c.Valid() {
			log.Printf("[aggregate] skipping malformed candle ts=%v o=%.6f h=%.6f l=%.6f c=%.6f",
				c.OpenTime, c.Open, c.High, c.Low, c.Close)
			continue
		}

		bucket := tf.Bucket(c.OpenTime)
		key := bucket.Unix()

		m, exists := buckets[key]
		if !exists {
			merged := model.Candle{
				OpenTime: bucket,
				Open:     c.Open,
				High:     c.High,
				Low:      c.Low,
				Close:    c.Close,
				Volume:   c.Volume,
			}
			buckets[key] = &merged
			order = append(order, key)
			continue
		}

		// Same bucket — merge OHLCV (O(1))
		if c.High > m.High {
			m.High = c.High
		}
		if c.Low < m.Low {
			m.Low = c.Low
		}
		m.Close = c.Close
		m.Volume += c.Volume
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]model.Candle, 0, len(order))
	for _, key := range order {
		out = append(out, *buckets[key])
	}
	return out
}

// Frames aggregates the base window into every configured timeframe.
// The base timeframe itself is returned as-is (minus invalid candles) under
// its own key so callers can treat all frames uniformly.
func Frames(base []model.Candle, baseTF model.Timeframe, tfs []model.Timeframe) map[model.Timeframe][]model.Candle {
	frames := make(map[model.Timeframe][]model.Candle, len(tfs)+1)
	for _, tf := range tfs {
		if tf == baseTF {
			continue
		}
		frames[tf] = Aggregate(base, tf)
	}
	frames[baseTF] = Aggregate(base, baseTF)
	return frames
}
