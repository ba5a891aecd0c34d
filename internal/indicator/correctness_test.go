package indicator

import (
	"math"
	"testing"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness
// ────────────────────────────────────────────────────────────

func TestRSI_MonotonicRise_Is100(t *testing.T) {
	// Strictly increasing closes 1..20 with period 14: avgLoss = 0, so once
	// seeded RSI must pin at exactly 100.
	rsi := NewRSI(14)
	for i := 1; i <= 20; i++ {
		rsi.Update(float64(i))
		if i <= 14 && rsi.Ready() {
			t.Errorf("close %d: ready before the seed period completed", i)
		}
	}
	if !rsi.Ready() {
		t.Fatal("RSI not ready after 20 closes with period 14")
	}
	assertClose(t, "RSI monotonic rise", rsi.Value(), 100.0, 1e-9)
}

func TestRSI_ReadyRequiresExactlySeedPeriod(t *testing.T) {
	// Readiness requires exactly period deltas, i.e. period+1 closes.
	rsi := NewRSI(5)
	for i := 0; i < 5; i++ {
		rsi.Update(100 + float64(i))
		if rsi.Ready() {
			t.Fatalf("ready after %d closes, want ready only at 6", i+1)
		}
	}
	rsi.Update(106)
	if !rsi.Ready() {
		t.Error("not ready after period+1 closes")
	}
}

func TestRSI_BoundedOnceReady(t *testing.T) {
	rsi := NewRSI(14)
	prices := []float64{44, 47, 45, 50, 43, 48, 46, 52, 41, 49, 47, 53, 42, 50, 48, 54, 40, 51, 49, 55, 43, 52}
	for i, p := range prices {
		rsi.Update(p)
		if rsi.Ready() {
			v := rsi.Value()
			if v < 0 || v > 100 {
				t.Errorf("close %d: RSI %.4f outside [0,100]", i, v)
			}
		}
	}
}

func TestRSI_WilderSmoothing_HandComputed(t *testing.T) {
	// Period 2, closes: 10, 11, 10, 12.
	// Deltas: +1, -1, +2.
	// Seed after 2 deltas: avgGain=0.5, avgLoss=0.5 → RS=1 → RSI=50.
	// Next delta +2: avgGain=(0.5*1+2)/2=1.25, avgLoss=(0.5*1+0)/2=0.25
	// → RS=5 → RSI = 100 - 100/6 = 83.3333.
	rsi := NewRSI(2)
	for _, p := range []float64{10, 11, 10} {
		rsi.Update(p)
	}
	assertClose(t, "RSI(2) seed", rsi.Value(), 50.0, 1e-9)
	rsi.Update(12)
	assertClose(t, "RSI(2) smoothed", rsi.Value(), 100.0-100.0/6.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Bollinger Correctness
// ────────────────────────────────────────────────────────────

func TestBollinger_FlatWindow_ZeroWidth(t *testing.T) {
	// Period 5, k=2, closes all 10: std=0, all three bands = 10.
	bb := NewBollinger(5, 2)
	for i := 0; i < 5; i++ {
		bb.Update(10)
	}
	if !bb.Ready() {
		t.Fatal("not ready after filling the window")
	}
	b := bb.Bands()
	assertClose(t, "middle", b.Middle, 10, 1e-9)
	assertClose(t, "upper", b.Upper, 10, 1e-9)
	assertClose(t, "lower", b.Lower, 10, 1e-9)
	assertClose(t, "std", b.StdDev, 0, 1e-9)
}

func TestBollinger_HandComputed(t *testing.T) {
	// Period 4, k=2, closes 2, 4, 4, 6:
	// mean = 4, variance = (4+16+16+36)/4 - 16 = 2, std = sqrt(2).
	bb := NewBollinger(4, 2)
	for _, p := range []float64{2, 4, 4, 6} {
		bb.Update(p)
	}
	b := bb.Bands()
	std := math.Sqrt(2)
	assertClose(t, "middle", b.Middle, 4, 1e-9)
	assertClose(t, "std", b.StdDev, std, 1e-9)
	assertClose(t, "upper", b.Upper, 4+2*std, 1e-9)
	assertClose(t, "lower", b.Lower, 4-2*std, 1e-9)
}

func TestBollinger_Ordering(t *testing.T) {
	// lower <= middle <= upper for any k >= 0, for all ready outputs.
	for _, k := range []float64{0, 0.5, 1, 2, 3} {
		bb := NewBollinger(5, k)
		prices := []float64{10, 14, 9, 17, 12, 8, 19, 11, 13, 16}
		for i, p := range prices {
			bb.Update(p)
			if !bb.Ready() {
				continue
			}
			b := bb.Bands()
			if b.Lower > b.Middle || b.Middle > b.Upper {
				t.Errorf("k=%.1f close %d: ordering violated: %.4f / %.4f / %.4f",
					k, i, b.Lower, b.Middle, b.Upper)
			}
		}
	}
}

func TestBollinger_RollingWindowEviction(t *testing.T) {
	// After the window slides, evicted closes must not affect the mean.
	bb := NewBollinger(3, 2)
	for _, p := range []float64{100, 1, 2, 3} { // 100 evicted by the 4th update
		bb.Update(p)
	}
	assertClose(t, "middle after eviction", bb.Bands().Middle, 2, 1e-9)
}

// ────────────────────────────────────────────────────────────
// EMA / SMA / SMMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_SeedAndSmoothing(t *testing.T) {
	// Period 3, closes 10, 11, 12: seed = 11. Multiplier = 0.5.
	// Next close 14: ema = (14-11)*0.5 + 11 = 12.5.
	ema := NewEMA(3)
	for _, p := range []float64{10, 11, 12} {
		ema.Update(p)
	}
	if !ema.Ready() {
		t.Fatal("not ready after period closes")
	}
	assertClose(t, "EMA seed", ema.Value(), 11, 1e-9)
	ema.Update(14)
	assertClose(t, "EMA smoothed", ema.Value(), 12.5, 1e-9)
}

func TestSMA_Window(t *testing.T) {
	// Period 3: after 10, 11, 12 → 11; after 13 → (11+12+13)/3 = 12.
	sma := NewSMA(3)
	for _, p := range []float64{10, 11, 12} {
		sma.Update(p)
	}
	assertClose(t, "SMA filled", sma.Value(), 11, 1e-9)
	sma.Update(13)
	assertClose(t, "SMA slid", sma.Value(), 12, 1e-9)
}

func TestSMMA_Smoothing(t *testing.T) {
	// Period 2: seed (10+12)/2 = 11; next 14 → (11*1+14)/2 = 12.5.
	smma := NewSMMA(2)
	smma.Update(10)
	smma.Update(12)
	assertClose(t, "SMMA seed", smma.Value(), 11, 1e-9)
	smma.Update(14)
	assertClose(t, "SMMA smoothed", smma.Value(), 12.5, 1e-9)
}

// ────────────────────────────────────────────────────────────
// MACD Correctness
// ────────────────────────────────────────────────────────────

func TestMACD_HistogramIdentity(t *testing.T) {
	// histogram == line − signal at every ready tick, exactly.
	macd := NewMACD(3, 6, 3)
	prices := []float64{10, 11, 13, 12, 14, 16, 15, 17, 19, 18, 20, 22, 21, 23}
	for i, p := range prices {
		macd.Update(p)
		if !macd.Ready() {
			continue
		}
		v := macd.MACD()
		assertClose(t, "histogram identity at close "+string(rune('A'+i)), v.Histogram, v.Line-v.Signal, 1e-12)
	}
	if !macd.Ready() {
		t.Fatal("MACD never became ready")
	}
}

func TestMACD_NotReadyUntilAllSeeded(t *testing.T) {
	// fast=2, slow=3, signal=2: the slow EMA seeds at close 3, the signal EMA
	// consumes macd-line values from then on and seeds two lines later.
	macd := NewMACD(2, 3, 2)
	readyAt := -1
	for i, p := range []float64{10, 11, 12, 13, 14, 15} {
		macd.Update(p)
		if macd.Ready() && readyAt == -1 {
			readyAt = i + 1
		}
	}
	if readyAt != 4 {
		t.Errorf("ready after %d closes, want 4", readyAt)
	}
}
