package signal

import (
	"fmt"
)

// VoteConfig tunes the fast confidence-vote scorer.
type VoteConfig struct {
	Thresholds

	// MinConfidence is the minimum met/total ratio (×100) required to act.
	MinConfidence float64

	// RequireTrendAlign counts the trend filter as one of the voted
	// conditions when true; when false the condition is excluded entirely.
	RequireTrendAlign bool
}

// DefaultVoteConfig returns the conventional vote tuning.
func DefaultVoteConfig() VoteConfig {
	return VoteConfig{
		Thresholds:        DefaultThresholds(),
		MinConfidence:     60,
		RequireTrendAlign: true,
	}
}

// Vote evaluates a fixed checklist of boolean conditions per side and
// emits the side whose conditions-met ratio clears the minimum confidence.
// Cheaper than fusion: no pattern detection input is consulted.
type Vote struct {
	cfg VoteConfig
}

// NewVote creates the vote generator.
func NewVote(cfg VoteConfig) *Vote {
	return &Vote{cfg: cfg}
}

func (v *Vote) Name() string { return "vote" }

type condition struct {
	name string
	met  bool
}

// Generate implements Generator.
func (v *Vote) Generate(in Input) Signal {
	if !in.Snap.Ready {
		return Hold("indicators warming up", in.Candle.Close, in.Candle.OpenTime)
	}
	if v.cfg.flatCandle(&in.Candle) {
		return Hold("flat candle below minimum body", in.Candle.Close, in.Candle.OpenTime)
	}

	snap := in.Snap

	buyConds := []condition{
		{fmt.Sprintf("RSI %.1f below %.0f", snap.RSI, v.cfg.RSIOversold), snap.RSI < v.cfg.RSIOversold},
		{"price at/below lower band", snap.Close <= snap.Bands.Lower},
		{"bullish candle body", in.Candle.Bullish()},
		{"MACD histogram positive", snap.MACD.Histogram > 0},
		{"fast MA above slow MA", snap.FastSMA > snap.SlowSMA},
	}
	sellConds := []condition{
		{fmt.Sprintf("RSI %.1f above %.0f", snap.RSI, v.cfg.RSIOverbought), snap.RSI > v.cfg.RSIOverbought},
		{"price at/above upper band", snap.Close >= snap.Bands.Upper},
		{"bearish candle body", in.Candle.Bearish()},
		{"MACD histogram negative", snap.MACD.Histogram < 0},
		{"fast MA below slow MA", snap.FastSMA < snap.SlowSMA},
	}
	if v.cfg.RequireTrendAlign {
		buyConds = append(buyConds, condition{"price above trend baseline", snap.Close > snap.Trend})
		sellConds = append(sellConds, condition{"price below trend baseline", snap.Close < snap.Trend})
	}

	buyConf, buyEv := tally(buyConds)
	sellConf, sellEv := tally(sellConds)

	switch {
	case buyConf >= v.cfg.MinConfidence && buyConf > sellConf:
		return Signal{
			Action:     ActionBuy,
			Confidence: buyConf,
			Reason:     fmt.Sprintf("%d/%d buy conditions met", len(buyEv), len(buyConds)),
			Evidence:   buyEv,
			Price:      in.Candle.Close,
			At:         in.Candle.OpenTime,
		}
	case sellConf >= v.cfg.MinConfidence && sellConf > buyConf:
		return Signal{
			Action:     ActionSell,
			Confidence: sellConf,
			Reason:     fmt.Sprintf("%d/%d sell conditions met", len(sellEv), len(sellConds)),
			Evidence:   sellEv,
			Price:      in.Candle.Close,
			At:         in.Candle.OpenTime,
		}
	}

	return Hold(fmt.Sprintf("confidence below %.0f (buy %.0f, sell %.0f)",
		v.cfg.MinConfidence, buyConf, sellConf), in.Candle.Close, in.Candle.OpenTime)
}

// tally computes met/total × 100 and collects the names of met conditions.
func tally(conds []condition) (float64, []string) {
	if len(conds) == 0 {
		return 0, nil
	}
	met := 0
	var evidence []string
	for _, c := range conds {
		if c.met {
			met++
			evidence = append(evidence, c.name)
		}
	}
	return float64(met) / float64(len(conds)) * 100, evidence
}
