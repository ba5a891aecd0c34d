package aggregate

import (
	"testing"
	"time"

	"spotenginev1/internal/model"
)

// makeCandle creates a test 1m candle at the given Unix second.
func makeCandle(unixSec int64, open, high, low, close_, vol float64) model.Candle {
	return model.Candle{
		OpenTime: time.Unix(unixSec, 0).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close_,
		Volume:   vol,
	}
}

func TestAggregate_5m_Buckets(t *testing.T) {
	base := int64(1700000400) // aligned to 5m boundary
	var candles []model.Candle
	for i := int64(0); i < 10; i++ {
		// ten 1m candles spanning exactly two 5m buckets
		candles = append(candles, makeCandle(base+i*60, 100+float64(i), 105+float64(i), 95+float64(i), 102+float64(i), 10))
	}

	out := Aggregate(candles, model.TF5m)
	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}

	first := out[0]
	if first.OpenTime.Unix() != base {
		t.Errorf("bucket time: got %d, want %d", first.OpenTime.Unix(), base)
	}
	if first.Open != 100 {
		t.Errorf("open: got %.2f, want 100 (earliest candle's open)", first.Open)
	}
	if first.Close != 106 {
		t.Errorf("close: got %.2f, want 106 (latest candle's close)", first.Close)
	}
	if first.High != 109 {
		t.Errorf("high: got %.2f, want 109", first.High)
	}
	if first.Low != 95 {
		t.Errorf("low: got %.2f, want 95", first.Low)
	}
	if first.Volume != 50 {
		t.Errorf("volume: got %.2f, want 50 (sum of children)", first.Volume)
	}
}

func TestAggregate_PartialTrailingBucketIncluded(t *testing.T) {
	base := int64(1700000400)
	candles := []model.Candle{
		makeCandle(base, 10, 11, 9, 10.5, 1),
		makeCandle(base+60, 10.5, 12, 10, 11, 1),
		// two candles into the next 5m bucket — incomplete
		makeCandle(base+300, 11, 13, 11, 12, 2),
	}

	out := Aggregate(candles, model.TF5m)
	if len(out) != 2 {
		t.Fatalf("expected partial trailing bucket to be emitted, got %d buckets", len(out))
	}
	if out[1].Close != 12 {
		t.Errorf("trailing bucket close: got %.2f, want 12", out[1].Close)
	}
}

func TestAggregate_SkipsMalformedCandles(t *testing.T) {
	base := int64(1700000400)
	candles := []model.Candle{
		makeCandle(base, 10, 11, 9, 10.5, 1),
		makeCandle(base+60, 10, 8, 12, 10, 1), // high < low: malformed
		makeCandle(base+120, 10.5, 11.5, 10, 11, 1),
	}

	out := Aggregate(candles, model.TF5m)
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	if out[0].Volume != 2 {
		t.Errorf("malformed candle contributed to volume: got %.2f, want 2", out[0].Volume)
	}
}

func TestAggregate_Invariants(t *testing.T) {
	// Property: for all inputs, high >= max(open, close), low <= min(open, close),
	// and volume is the sum of child volumes.
	base := int64(1700000000)
	var candles []model.Candle
	prices := []float64{50, 53, 48, 51, 55, 47, 49, 52, 54, 46, 50, 53}
	var totalVol float64
	for i, p := range prices {
		c := makeCandle(base+int64(i)*60, p, p+2, p-2, p+1, float64(i+1))
		candles = append(candles, c)
		totalVol += float64(i + 1)
	}

	for _, tf := range []model.Timeframe{model.TF5m, model.TF15m, model.TF30m, model.TF1h} {
		out := Aggregate(candles, tf)
		var vol float64
		for _, c := range out {
			if c.High < c.Open || c.High < c.Close {
				t.Errorf("tf=%s: high %.2f below body", tf, c.High)
			}
			if c.Low > c.Open || c.Low > c.Close {
				t.Errorf("tf=%s: low %.2f above body", tf, c.Low)
			}
			vol += c.Volume
		}
		if vol != totalVol {
			t.Errorf("tf=%s: volume sum %.2f, want %.2f", tf, vol, totalVol)
		}
		for i := 1; i < len(out); i++ {
			if !out[i].OpenTime.After(out[i-1].OpenTime) {
				t.Errorf("tf=%s: buckets not strictly ascending", tf)
			}
		}
	}
}

func TestFrames_IncludesBase(t *testing.T) {
	base := int64(1700000400)
	candles := []model.Candle{
		makeCandle(base, 10, 11, 9, 10.5, 1),
		makeCandle(base+60, 10.5, 12, 10, 11, 1),
	}

	frames := Frames(candles, model.TF1m, []model.Timeframe{model.TF1m, model.TF5m})
	if len(frames[model.TF1m]) != 2 {
		t.Errorf("base frame: got %d candles, want 2", len(frames[model.TF1m]))
	}
	if len(frames[model.TF5m]) != 1 {
		t.Errorf("5m frame: got %d candles, want 1", len(frames[model.TF5m]))
	}
}
