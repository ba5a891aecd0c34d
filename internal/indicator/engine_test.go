package indicator

import (
	"testing"
	"time"

	"spotenginev1/internal/model"
)

func makeCandle(i int, close, volume float64) model.Candle {
	return model.Candle{
		OpenTime: time.Unix(1700000000+int64(i)*60, 0).UTC(),
		Open:     close - 0.5,
		High:     close + 1,
		Low:      close - 1,
		Close:    close,
		Volume:   volume,
	}
}

func smallConfig() Config {
	return Config{
		RSIPeriod:  3,
		BBPeriod:   4,
		BBK:        2,
		MACDFast:   2,
		MACDSlow:   4,
		MACDSignal: 2,
		EMAPeriod:  3,
		FastSMA:    2,
		SlowSMA:    4,
		TrendSMMA:  4,
		VolumeSMA:  3,
	}
}

func TestEngine_ReadyIsANDOfSubIndicators(t *testing.T) {
	e := NewEngine(smallConfig())

	var snap Snapshot
	readyAt := -1
	for i := 0; i < 12; i++ {
		snap = e.Update(makeCandle(i, 100+float64(i), 10))
		if snap.Ready && readyAt == -1 {
			readyAt = i + 1
		}
	}
	if readyAt == -1 {
		t.Fatal("engine never became ready")
	}
	// MACD is the slowest here: slow EMA seeds at 4 closes, signal EMA two
	// macd-line values later → 5. RSI(3) needs 4 closes, the rest fewer.
	if readyAt != 5 {
		t.Errorf("ready after %d candles, want 5", readyAt)
	}
	if !snap.Ready {
		t.Error("final snapshot not ready")
	}
}

func TestEngine_GetIndicatorsDoesNotAdvance(t *testing.T) {
	e := NewEngine(smallConfig())
	for i := 0; i < 8; i++ {
		e.Update(makeCandle(i, 100+float64(i), 10))
	}
	before := e.GetIndicators()
	for i := 0; i < 5; i++ {
		got := e.GetIndicators()
		if got != before {
			t.Fatal("GetIndicators mutated engine state")
		}
	}
}

func TestEngine_WarmupMatchesSequentialUpdates(t *testing.T) {
	candles := make([]model.Candle, 0, 30)
	prices := []float64{50, 52, 51, 54, 53, 56, 55, 58, 57, 60, 59, 62, 61, 64, 63, 66, 65, 68, 67, 70}
	for i, p := range prices {
		candles = append(candles, makeCandle(i, p, float64(5+i)))
	}

	warm := NewEngine(smallConfig())
	warmSnap := warm.Warmup(candles)

	seq := NewEngine(smallConfig())
	var seqSnap Snapshot
	for _, c := range candles {
		seqSnap = seq.Update(c)
	}

	if warmSnap != seqSnap {
		t.Errorf("warmup snapshot differs from sequential updates:\nwarm=%+v\nseq=%+v", warmSnap, seqSnap)
	}
}

func TestEngine_CrossoverDetection(t *testing.T) {
	// Drive the fast SMA below the slow SMA, then sharply above it, and
	// assert a golden cross is observed on the rising tick.
	e := NewEngine(smallConfig())
	prices := []float64{100, 98, 96, 94, 92, 90, 110, 130}
	sawGolden := false
	for i, p := range prices {
		snap := e.Update(makeCandle(i, p, 10))
		if snap.GoldenCross() {
			sawGolden = true
		}
	}
	if !sawGolden {
		t.Error("expected a golden cross on the price reversal")
	}
}

func TestEngine_SnapshotCloseVolume(t *testing.T) {
	e := NewEngine(smallConfig())
	snap := e.Update(makeCandle(0, 123.45, 77))
	if snap.Close != 123.45 || snap.Volume != 77 {
		t.Errorf("snapshot carries close=%.2f volume=%.2f, want 123.45/77", snap.Close, snap.Volume)
	}
	if snap.Ready {
		t.Error("ready after one candle")
	}
}

func TestEngine_WarmingNamesDrainAsReady(t *testing.T) {
	e := NewEngine(smallConfig())

	warming := e.Warming()
	if len(warming) == 0 {
		t.Fatal("fresh engine reports nothing warming")
	}
	names := make(map[string]bool, len(warming))
	for _, n := range warming {
		names[n] = true
	}
	if !names["RSI"] || !names["VOL"] {
		t.Errorf("fresh engine warming list %v missing RSI or VOL", warming)
	}

	for i := 0; i < 12; i++ {
		e.Update(makeCandle(i, 100+float64(i), 10))
	}
	if w := e.Warming(); len(w) != 0 {
		t.Errorf("ready engine still warming: %v", w)
	}
}
