// Package pattern detects candlestick patterns over a 3-candle window.
//
// Detection is a stateless, deterministic function of the window: the same
// three candles always produce the same pattern set. Multiple patterns may
// fire at one index; the signal fusion stage aggregates them.
package pattern

// Type classifies a pattern's directional bias.
type Type string

const (
	Bullish Type = "bullish"
	Bearish Type = "bearish"
	Neutral Type = "neutral"
)

// Pattern is one detected candlestick shape. Strength is a configured 0-100
// weight reflecting empirical reliability rank, not a probability.
type Pattern struct {
	Name           string  `json:"name"`
	Type           Type    `json:"type"`
	Strength       float64 `json:"strength"`
	TimeframeIndex int     `json:"timeframe_index"`
}

// Pattern names recognized by the detector.
const (
	Doji             = "doji"
	DragonflyDoji    = "dragonfly_doji"
	GravestoneDoji   = "gravestone_doji"
	Hammer           = "hammer"
	InvertedHammer   = "inverted_hammer"
	BullishEngulfing = "bullish_engulfing"
	BearishEngulfing = "bearish_engulfing"
	BullishHarami    = "bullish_harami"
	BearishHarami    = "bearish_harami"
	MorningStar      = "morning_star"
	EveningStar      = "evening_star"
	ThreeWhite       = "three_white_soldiers"
	ThreeBlack       = "three_black_crows"
	TweezerTop       = "tweezer_top"
	TweezerBottom    = "tweezer_bottom"
	BullishMarubozu  = "bullish_marubozu"
	BearishMarubozu  = "bearish_marubozu"
)

// Weights maps pattern name → strength (0-100). The defaults rank multi-candle
// reversal patterns above single-candle shapes.
type Weights map[string]float64

// DefaultWeights returns the built-in reliability ranking.
func DefaultWeights() Weights {
	return Weights{
		Doji:             35,
		DragonflyDoji:    55,
		GravestoneDoji:   55,
		Hammer:           65,
		InvertedHammer:   55,
		BullishEngulfing: 80,
		BearishEngulfing: 80,
		BullishHarami:    60,
		BearishHarami:    60,
		MorningStar:      85,
		EveningStar:      85,
		ThreeWhite:       90,
		ThreeBlack:       90,
		TweezerTop:       60,
		TweezerBottom:    60,
		BullishMarubozu:  70,
		BearishMarubozu:  70,
	}
}
