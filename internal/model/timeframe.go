package model

import "time"

// Timeframe is a candle bucket width.
type Timeframe time.Duration

// Common timeframes.
const (
	TF1m  = Timeframe(1 * time.Minute)
	TF5m  = Timeframe(5 * time.Minute)
	TF15m = Timeframe(15 * time.Minute)
	TF30m = Timeframe(30 * time.Minute)
	TF1h  = Timeframe(1 * time.Hour)
)

// Duration returns the timeframe as a time.Duration.
func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) }

// Seconds returns the bucket width in whole seconds.
func (tf Timeframe) Seconds() int64 { return int64(time.Duration(tf) / time.Second) }

// Bucket aligns t down to the start of its bucket: floor(unix/width)*width.
func (tf Timeframe) Bucket(t time.Time) time.Time {
	w := tf.Seconds()
	if w <= 0 {
		return t.UTC()
	}
	ts := t.Unix()
	return time.Unix(ts-(ts%w), 0).UTC()
}

// String renders "1m", "5m", "1h", falling back to seconds for odd widths.
func (tf Timeframe) String() string {
	d := time.Duration(tf)
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return Itoa(int(d/time.Hour)) + "h"
	case d >= time.Minute && d%time.Minute == 0:
		return Itoa(int(d/time.Minute)) + "m"
	default:
		return Itoa(int(d/time.Second)) + "s"
	}
}
