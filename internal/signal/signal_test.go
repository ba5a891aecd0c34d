package signal

import (
	"testing"
	"time"

	"spotenginev1/internal/indicator"
	"spotenginev1/internal/model"
	"spotenginev1/internal/pattern"
)

func bullCandle(close float64) model.Candle {
	return model.Candle{
		OpenTime: time.Unix(1700000000, 0).UTC(),
		Open:     close * 0.99,
		High:     close * 1.01,
		Low:      close * 0.98,
		Close:    close,
		Volume:   100,
	}
}

func bearCandle(close float64) model.Candle {
	return model.Candle{
		OpenTime: time.Unix(1700000000, 0).UTC(),
		Open:     close * 1.01,
		High:     close * 1.02,
		Low:      close * 0.99,
		Close:    close,
		Volume:   100,
	}
}

// readySnap builds a neutral ready snapshot around the given close.
func readySnap(close float64) indicator.Snapshot {
	return indicator.Snapshot{
		RSI: 50,
		Bands: indicator.Bands{
			Upper: close * 1.05, Middle: close, Lower: close * 0.95, StdDev: close * 0.025,
		},
		MACD:        indicator.MACDValue{},
		EMA:         close,
		FastSMA:     close,
		SlowSMA:     close,
		PrevFastSMA: close,
		PrevSlowSMA: close,
		Trend:       close,
		AvgVolume:   100,
		Close:       close,
		Volume:      100,
		Ready:       true,
	}
}

func TestGenerators_NotReadyForcesHold(t *testing.T) {
	snap := readySnap(100)
	snap.Ready = false
	in := Input{Candle: bullCandle(100), Snap: snap}

	for _, g := range []Generator{NewFusion(DefaultFusionConfig()), NewVote(DefaultVoteConfig())} {
		got := g.Generate(in)
		if got.Action != ActionHold {
			t.Errorf("%s: action %s on unready indicators, want HOLD", g.Name(), got.Action)
		}
	}
}

func TestGenerators_FlatCandleForcesHold(t *testing.T) {
	flat := model.Candle{
		OpenTime: time.Unix(1700000000, 0).UTC(),
		Open:     100, High: 100.3, Low: 99.7, Close: 100.0001,
		Volume: 100,
	}
	// Strongly bullish evidence that would otherwise trigger a buy.
	snap := readySnap(100)
	snap.RSI = 20
	snap.MACD.Histogram = 1
	in := Input{Candle: flat, Snap: snap, Patterns: []pattern.Pattern{
		{Name: pattern.MorningStar, Type: pattern.Bullish, Strength: 85},
	}}

	for _, g := range []Generator{NewFusion(DefaultFusionConfig()), NewVote(DefaultVoteConfig())} {
		got := g.Generate(in)
		if got.Action != ActionHold {
			t.Errorf("%s: action %s on flat candle, want HOLD", g.Name(), got.Action)
		}
	}
}

func TestVote_BuyWhenChecklistClears(t *testing.T) {
	c := bullCandle(95)
	snap := readySnap(95)
	snap.RSI = 25             // below dip threshold
	snap.Bands.Lower = 96     // price at/below lower band
	snap.MACD.Histogram = 0.5 // positive
	snap.FastSMA, snap.SlowSMA = 97, 96
	snap.Trend = 90 // price above trend

	got := NewVote(DefaultVoteConfig()).Generate(Input{Candle: c, Snap: snap})
	if got.Action != ActionBuy {
		t.Fatalf("action %s, want BUY (%s)", got.Action, got.Reason)
	}
	if got.Confidence != 100 {
		t.Errorf("confidence %.1f, want 100 with all conditions met", got.Confidence)
	}
	if len(got.Evidence) != 6 {
		t.Errorf("evidence entries %d, want 6", len(got.Evidence))
	}
}

func TestVote_BelowMinConfidenceHolds(t *testing.T) {
	c := bullCandle(100)
	snap := readySnap(100)
	snap.MACD.Histogram = 0.5 // only bullish body + MACD: 2/6 = 33 < 60

	got := NewVote(DefaultVoteConfig()).Generate(Input{Candle: c, Snap: snap})
	if got.Action != ActionHold {
		t.Errorf("action %s with confidence below minimum, want HOLD", got.Action)
	}
}

func TestVote_SellSideSymmetric(t *testing.T) {
	c := bearCandle(105)
	snap := readySnap(105)
	snap.RSI = 80
	snap.Bands.Upper = 104 // price above upper band
	snap.MACD.Histogram = -0.5
	snap.FastSMA, snap.SlowSMA = 103, 104
	snap.Trend = 110 // price below trend

	got := NewVote(DefaultVoteConfig()).Generate(Input{Candle: c, Snap: snap})
	if got.Action != ActionSell {
		t.Fatalf("action %s, want SELL (%s)", got.Action, got.Reason)
	}
	if got.Confidence != 100 {
		t.Errorf("confidence %.1f, want 100", got.Confidence)
	}
}

func TestFusion_BullishDominanceBuys(t *testing.T) {
	c := bullCandle(100)
	snap := readySnap(100)
	snap.RSI = 25
	snap.MACD.Histogram = 1
	snap.Trend = 95 // trend-aligned

	patterns := []pattern.Pattern{
		{Name: pattern.BullishEngulfing, Type: pattern.Bullish, Strength: 80, TimeframeIndex: 0},
		{Name: pattern.Hammer, Type: pattern.Bullish, Strength: 65, TimeframeIndex: 1},
	}

	got := NewFusion(DefaultFusionConfig()).Generate(Input{Candle: c, Snap: snap, Patterns: patterns})
	if got.Action != ActionBuy {
		t.Fatalf("action %s, want BUY (%s)", got.Action, got.Reason)
	}
	if got.Confidence < 60 || got.Confidence > 100 {
		t.Errorf("confidence %.1f outside [60,100]", got.Confidence)
	}
	if len(got.Evidence) == 0 {
		t.Error("buy signal carries no evidence")
	}
}

func TestFusion_TrendFilterRejects(t *testing.T) {
	c := bullCandle(100)
	snap := readySnap(100)
	snap.RSI = 25
	snap.MACD.Histogram = 1
	snap.Trend = 120 // price well below trend baseline

	patterns := []pattern.Pattern{
		{Name: pattern.MorningStar, Type: pattern.Bullish, Strength: 85, TimeframeIndex: 0},
	}

	got := NewFusion(DefaultFusionConfig()).Generate(Input{Candle: c, Snap: snap, Patterns: patterns})
	if got.Action != ActionHold {
		t.Errorf("action %s, want HOLD via trend filter", got.Action)
	}

	cfg := DefaultFusionConfig()
	cfg.RequireTrendAlign = false
	got = NewFusion(cfg).Generate(Input{Candle: c, Snap: snap, Patterns: patterns})
	if got.Action != ActionBuy {
		t.Errorf("action %s with trend filter off, want BUY", got.Action)
	}
}

func TestFusion_MultiTimeframeBonus(t *testing.T) {
	c := bullCandle(100)
	snap := readySnap(100) // neutral indicators

	single := []pattern.Pattern{
		{Name: pattern.Hammer, Type: pattern.Bullish, Strength: 40, TimeframeIndex: 0},
	}
	multi := []pattern.Pattern{
		{Name: pattern.Hammer, Type: pattern.Bullish, Strength: 40, TimeframeIndex: 0},
		{Name: pattern.Hammer, Type: pattern.Bullish, Strength: 40, TimeframeIndex: 2},
	}

	cfg := DefaultFusionConfig()
	cfg.MinScore = 0
	cfg.RequireTrendAlign = false
	f := NewFusion(cfg)

	a := f.Generate(Input{Candle: c, Snap: snap, Patterns: single})
	b := f.Generate(Input{Candle: c, Snap: snap, Patterns: multi})
	if b.Confidence <= a.Confidence {
		t.Errorf("multi-timeframe recurrence did not raise confidence: %.1f vs %.1f",
			b.Confidence, a.Confidence)
	}
}

func TestFusion_ScoreClamped(t *testing.T) {
	c := bullCandle(100)
	snap := readySnap(100)
	snap.RSI = 5
	snap.MACD.Histogram = 3
	snap.Trend = 50
	snap.Volume, snap.AvgVolume = 500, 100

	var patterns []pattern.Pattern
	for i := 0; i < 10; i++ {
		patterns = append(patterns, pattern.Pattern{
			Name: pattern.ThreeWhite, Type: pattern.Bullish, Strength: 90, TimeframeIndex: i,
		})
	}

	got := NewFusion(DefaultFusionConfig()).Generate(Input{Candle: c, Snap: snap, Patterns: patterns})
	if got.Confidence > 100 {
		t.Errorf("confidence %.1f exceeds 100", got.Confidence)
	}
}

func TestShouldExit(t *testing.T) {
	sell := Signal{Action: ActionSell, Confidence: 70}
	if !ShouldExit(sell, 70) {
		t.Error("sell at exactly the threshold should exit")
	}
	if ShouldExit(Signal{Action: ActionSell, Confidence: 69.9}, 70) {
		t.Error("sell below the threshold should not exit")
	}
	if ShouldExit(Signal{Action: ActionBuy, Confidence: 100}, 70) {
		t.Error("buy never exits")
	}
	if ShouldExit(Signal{Action: ActionHold, Confidence: 100}, 70) {
		t.Error("hold never exits")
	}
}
