package signal

import (
	"spotenginev1/internal/indicator"
	"spotenginev1/internal/model"
	"spotenginev1/internal/pattern"
)

// Input is the evidence available to a generator for one cycle: the latest
// primary-timeframe candle, the composite indicator snapshot for that
// timeframe, and all patterns detected across the configured timeframes.
type Input struct {
	Candle   model.Candle
	Snap     indicator.Snapshot
	Patterns []pattern.Pattern
}

// Generator converts one cycle's evidence into a Signal.
// Implementations must force Hold while indicators are not ready — that is
// a precondition, not an error.
type Generator interface {
	Name() string
	Generate(in Input) Signal
}

// Thresholds shared by both generator strategies.
type Thresholds struct {
	RSIOversold   float64 // e.g. 30
	RSIOverbought float64 // e.g. 70
	VolumeSpike   float64 // volume / avgVolume ratio counted as a spike, e.g. 1.5
	MinBodyPct    float64 // min body as % of close; flatter candles force Hold
}

// DefaultThresholds returns the conventional levels.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOversold:   30,
		RSIOverbought: 70,
		VolumeSpike:   1.5,
		MinBodyPct:    0.05,
	}
}

// flatCandle applies the minimum-body filter that precedes both strategies:
// near-flat candles are noise and force a Hold.
func (t Thresholds) flatCandle(c *model.Candle) bool {
	if c.Close == 0 {
		return true
	}
	return c.Body()/c.Close*100 < t.MinBodyPct
}
