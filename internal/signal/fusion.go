package signal

import (
	"fmt"

	"spotenginev1/internal/pattern"
)

// FusionConfig tunes the weighted pattern/indicator fusion scorer.
type FusionConfig struct {
	Thresholds

	// IndicatorWeight w combines the two scores:
	// combined = patternScore*(1-w) + indicatorScore*w.
	IndicatorWeight float64

	// MultiTFBonus is added to the pattern score for every pattern name that
	// recurs on more than one timeframe.
	MultiTFBonus float64

	// IndicatorDelta is the fixed adjustment applied to the neutral baseline
	// (50) per indicator condition.
	IndicatorDelta float64

	// MinScore is the minimum combined score required to act.
	MinScore float64

	// RequireTrendAlign gates buys to price above the trend baseline and
	// sells to price below it.
	RequireTrendAlign bool
}

// DefaultFusionConfig returns the conventional fusion tuning.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Thresholds:        DefaultThresholds(),
		IndicatorWeight:   0.5,
		MultiTFBonus:      10,
		IndicatorDelta:    10,
		MinScore:          60,
		RequireTrendAlign: true,
	}
}

// Fusion scores the dominant pattern side against an indicator baseline and
// acts only when one side clearly dominates.
type Fusion struct {
	cfg FusionConfig
}

// NewFusion creates the fusion generator.
func NewFusion(cfg FusionConfig) *Fusion {
	return &Fusion{cfg: cfg}
}

func (f *Fusion) Name() string { return "fusion" }

// Generate implements Generator.
func (f *Fusion) Generate(in Input) Signal {
	if !in.Snap.Ready {
		return Hold("indicators warming up", in.Candle.Close, in.Candle.OpenTime)
	}
	if f.cfg.flatCandle(&in.Candle) {
		return Hold("flat candle below minimum body", in.Candle.Close, in.Candle.OpenTime)
	}

	bullPat, bearPat, patEvidence := f.patternScores(in.Patterns)
	indScore, indEvidence := f.indicatorScore(in)

	// indScore > 50 is bullish pressure, < 50 bearish; fold it into a
	// per-side 0-100 scale.
	bullInd := indScore
	bearInd := 100 - indScore

	w := f.cfg.IndicatorWeight
	bull := clamp(bullPat*(1-w) + bullInd*w)
	bear := clamp(bearPat*(1-w) + bearInd*w)

	evidence := append(patEvidence, indEvidence...)

	switch {
	case bull >= f.cfg.MinScore && bull > bear:
		if f.cfg.RequireTrendAlign && in.Snap.Close < in.Snap.Trend {
			return Hold(fmt.Sprintf("bullish score %.0f rejected by trend filter", bull),
				in.Candle.Close, in.Candle.OpenTime)
		}
		return Signal{
			Action:     ActionBuy,
			Confidence: bull,
			Reason:     "bullish evidence dominates",
			Evidence:   evidence,
			Price:      in.Candle.Close,
			At:         in.Candle.OpenTime,
		}

	case bear >= f.cfg.MinScore && bear > bull:
		if f.cfg.RequireTrendAlign && in.Snap.Close > in.Snap.Trend {
			return Hold(fmt.Sprintf("bearish score %.0f rejected by trend filter", bear),
				in.Candle.Close, in.Candle.OpenTime)
		}
		return Signal{
			Action:     ActionSell,
			Confidence: bear,
			Reason:     "bearish evidence dominates",
			Evidence:   evidence,
			Price:      in.Candle.Close,
			At:         in.Candle.OpenTime,
		}
	}

	return Hold(fmt.Sprintf("no dominant side (bull %.0f, bear %.0f)", bull, bear),
		in.Candle.Close, in.Candle.OpenTime)
}

// patternScores sums pattern strength per side and applies the
// multi-timeframe recurrence bonus.
func (f *Fusion) patternScores(patterns []pattern.Pattern) (bull, bear float64, evidence []string) {
	tfSeen := make(map[string]map[int]bool)

	for _, p := range patterns {
		switch p.Type {
		case pattern.Bullish:
			bull += p.Strength
		case pattern.Bearish:
			bear += p.Strength
		default:
			continue
		}
		evidence = append(evidence, fmt.Sprintf("pattern %s(%s) tf=%d", p.Name, p.Type, p.TimeframeIndex))

		if tfSeen[p.Name] == nil {
			tfSeen[p.Name] = make(map[int]bool)
		}
		tfSeen[p.Name][p.TimeframeIndex] = true
	}

	for name, tfs := range tfSeen {
		if len(tfs) < 2 {
			continue
		}
		bonus := f.cfg.MultiTFBonus * float64(len(tfs)-1)
		evidence = append(evidence, fmt.Sprintf("%s recurs on %d timeframes", name, len(tfs)))
		// Bonus goes to whichever side the pattern belongs to; look it up
		// from any occurrence.
		for _, p := range patterns {
			if p.Name != name {
				continue
			}
			if p.Type == pattern.Bullish {
				bull += bonus
			} else if p.Type == pattern.Bearish {
				bear += bonus
			}
			break
		}
	}

	return clamp(bull), clamp(bear), evidence
}

// indicatorScore starts at the neutral baseline 50 and applies fixed deltas
// per condition: above 50 is bullish pressure, below is bearish.
func (f *Fusion) indicatorScore(in Input) (float64, []string) {
	score := 50.0
	var evidence []string
	delta := f.cfg.IndicatorDelta
	snap := in.Snap

	if snap.RSI <= f.cfg.RSIOversold {
		score += delta
		evidence = append(evidence, fmt.Sprintf("RSI %.1f oversold", snap.RSI))
	} else if snap.RSI >= f.cfg.RSIOverbought {
		score -= delta
		evidence = append(evidence, fmt.Sprintf("RSI %.1f overbought", snap.RSI))
	}

	if snap.AvgVolume > 0 && snap.Volume >= snap.AvgVolume*f.cfg.VolumeSpike {
		// A volume spike confirms whichever way the candle points.
		if in.Candle.Bullish() {
			score += delta
			evidence = append(evidence, "volume spike on bullish candle")
		} else if in.Candle.Bearish() {
			score -= delta
			evidence = append(evidence, "volume spike on bearish candle")
		}
	}

	if snap.MACD.Histogram > 0 {
		score += delta
		evidence = append(evidence, "MACD histogram positive")
	} else if snap.MACD.Histogram < 0 {
		score -= delta
		evidence = append(evidence, "MACD histogram negative")
	}

	if snap.GoldenCross() {
		score += delta
		evidence = append(evidence, "golden cross")
	} else if snap.DeathCross() {
		score -= delta
		evidence = append(evidence, "death cross")
	}

	if snap.Bands.StdDev > 0 {
		if snap.Close <= snap.Bands.Lower {
			score += delta
			evidence = append(evidence, "price at lower band")
		} else if snap.Close >= snap.Bands.Upper {
			score -= delta
			evidence = append(evidence, "price at upper band")
		}
	}

	return clamp(score), evidence
}
