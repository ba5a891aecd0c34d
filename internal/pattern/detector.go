package pattern

import "spotenginev1/internal/model"

// Config holds the ratio thresholds the shape tests compare against.
type Config struct {
	DojiBodyRatio    float64 // max body/range for a doji (default 0.1)
	SmallBodyRatio   float64 // max body/range for a "small body" (default 0.3)
	WickBodyRatio    float64 // min wick/body for hammer-family shapes (default 2.0)
	MarubozuRatio    float64 // min body/range for a marubozu (default 0.9)
	TweezerTolerance float64 // max relative high/low difference (default 0.001)
	Weights          Weights
}

// DefaultConfig returns the conventional thresholds with default weights.
func DefaultConfig() Config {
	return Config{
		DojiBodyRatio:    0.1,
		SmallBodyRatio:   0.3,
		WickBodyRatio:    2.0,
		MarubozuRatio:    0.9,
		TweezerTolerance: 0.001,
		Weights:          DefaultWeights(),
	}
}

// Detector evaluates candlestick shapes against configured thresholds.
// It is an explicitly constructed collaborator: callers own it and inject it
// wherever detection is needed. It keeps no state between calls.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg Config) *Detector {
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	return &Detector{cfg: cfg}
}

// Scan evaluates every index >= 2 of the candle sequence and returns all
// detections, tagged with tfIndex so multi-timeframe recurrence can be scored.
func (d *Detector) Scan(candles []model.Candle, tfIndex int) []Pattern {
	var out []Pattern
	for i := 2; i < len(candles); i++ {
		out = append(out, d.Detect(&candles[i-2], &candles[i-1], &candles[i], tfIndex)...)
	}
	return out
}

// ScanLatest evaluates only the final 3-candle window.
func (d *Detector) ScanLatest(candles []model.Candle, tfIndex int) []Pattern {
	n := len(candles)
	if n < 3 {
		return nil
	}
	return d.Detect(&candles[n-3], &candles[n-2], &candles[n-1], tfIndex)
}

// Detect reports all patterns visible in the window (prev2, prev1, cur).
func (d *Detector) Detect(prev2, prev1, cur *model.Candle, tfIndex int) []Pattern {
	var out []Pattern
	add := func(name string, typ Type) {
		out = append(out, Pattern{
			Name:           name,
			Type:           typ,
			Strength:       d.cfg.Weights[name],
			TimeframeIndex: tfIndex,
		})
	}

	// Single-candle shapes on cur.
	if rng := cur.Range(); rng > 0 {
		bodyRatio := cur.Body() / rng
		upper := cur.UpperWick()
		lower := cur.LowerWick()
		body := cur.Body()

		switch {
		case bodyRatio <= d.cfg.DojiBodyRatio:
			// Doji family: near-zero body; wick placement decides the bias.
			switch {
			case lower >= rng*0.6 && upper <= rng*0.1:
				add(DragonflyDoji, Bullish)
			case upper >= rng*0.6 && lower <= rng*0.1:
				add(GravestoneDoji, Bearish)
			default:
				add(Doji, Neutral)
			}

		case bodyRatio >= d.cfg.MarubozuRatio:
			if cur.Bullish() {
				add(BullishMarubozu, Bullish)
			} else if cur.Bearish() {
				add(BearishMarubozu, Bearish)
			}

		case bodyRatio <= d.cfg.SmallBodyRatio && body > 0:
			if lower >= body*d.cfg.WickBodyRatio && upper <= body {
				add(Hammer, Bullish)
			}
			if upper >= body*d.cfg.WickBodyRatio && lower <= body {
				add(InvertedHammer, Bullish)
			}
		}
	}

	// Two-candle shapes on (prev1, cur).
	if cur.Bullish() && prev1.Bearish() &&
		cur.Open <= prev1.Close && cur.Close >= prev1.Open {
		add(BullishEngulfing, Bullish)
	}
	if cur.Bearish() && prev1.Bullish() &&
		cur.Open >= prev1.Close && cur.Close <= prev1.Open {
		add(BearishEngulfing, Bearish)
	}
	if cur.Bullish() && prev1.Bearish() && prev1.Body() > 0 &&
		cur.Open > prev1.Close && cur.Close < prev1.Open &&
		cur.Body() <= prev1.Body()*0.6 {
		add(BullishHarami, Bullish)
	}
	if cur.Bearish() && prev1.Bullish() && prev1.Body() > 0 &&
		cur.Open < prev1.Close && cur.Close > prev1.Open &&
		cur.Body() <= prev1.Body()*0.6 {
		add(BearishHarami, Bearish)
	}
	if d.nearEqual(cur.High, prev1.High) && prev1.Bullish() && cur.Bearish() {
		add(TweezerTop, Bearish)
	}
	if d.nearEqual(cur.Low, prev1.Low) && prev1.Bearish() && cur.Bullish() {
		add(TweezerBottom, Bullish)
	}

	// Three-candle shapes.
	if d.isStar(prev2, prev1, cur, true) {
		add(MorningStar, Bullish)
	}
	if d.isStar(prev2, prev1, cur, false) {
		add(EveningStar, Bearish)
	}
	if d.isThreeSoldiers(prev2, prev1, cur) {
		add(ThreeWhite, Bullish)
	}
	if d.isThreeCrows(prev2, prev1, cur) {
		add(ThreeBlack, Bearish)
	}

	return out
}

// isStar tests morning star (bullish=true) / evening star (bullish=false):
// a long candle against the reversal, a small-bodied middle candle, then a
// long candle that closes past the midpoint of the first body.
func (d *Detector) isStar(first, middle, last *model.Candle, bullish bool) bool {
	fr, mr := first.Range(), middle.Range()
	if fr <= 0 || mr <= 0 {
		return false
	}
	if middle.Body()/mr > d.cfg.SmallBodyRatio {
		return false
	}
	mid := (first.Open + first.Close) / 2
	if bullish {
		return first.Bearish() && last.Bullish() && last.Close > mid
	}
	return first.Bullish() && last.Bearish() && last.Close < mid
}

func (d *Detector) isThreeSoldiers(a, b, c *model.Candle) bool {
	if !(a.Bullish() && b.Bullish() && c.Bullish()) {
		return false
	}
	// Each closes higher than the last and opens within the prior body.
	return b.Close > a.Close && c.Close > b.Close &&
		b.Open >= a.Open && b.Open <= a.Close &&
		c.Open >= b.Open && c.Open <= b.Close
}

func (d *Detector) isThreeCrows(a, b, c *model.Candle) bool {
	if !(a.Bearish() && b.Bearish() && c.Bearish()) {
		return false
	}
	return b.Close < a.Close && c.Close < b.Close &&
		b.Open <= a.Open && b.Open >= a.Close &&
		c.Open <= b.Open && c.Open >= b.Close
}

// nearEqual compares two prices within the tweezer tolerance.
func (d *Detector) nearEqual(a, b float64) bool {
	if b == 0 {
		return a == 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/b <= d.cfg.TweezerTolerance
}
