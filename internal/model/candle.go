package model

import (
	"encoding/json"
	"time"
)

// Candle represents an OHLCV candle for the traded pair over one bucket.
// Prices are quote-denominated float64; volume is base-asset quantity.
type Candle struct {
	OpenTime time.Time `json:"open_time"` // bucket start (UTC, TF-aligned)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Valid reports whether the candle satisfies the OHLC envelope:
// high >= max(open, close, low) and low <= min(open, close, high).
// Malformed candles are skipped by the aggregator, not treated as fatal.
func (c *Candle) Valid() bool {
	if c.High < c.Open || c.High < c.Close || c.High < c.Low {
		return false
	}
	if c.Low > c.Open || c.Low > c.Close {
		return false
	}
	return c.Volume >= 0
}

// Bullish reports whether the candle closed above its open.
func (c *Candle) Bullish() bool { return c.Close > c.Open }

// Bearish reports whether the candle closed below its open.
func (c *Candle) Bearish() bool { return c.Close < c.Open }

// Body returns the absolute open-close distance.
func (c *Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-low distance.
func (c *Candle) Range() float64 { return c.High - c.Low }

// UpperWick returns the distance from the body top to the high.
func (c *Candle) UpperWick() float64 {
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	return c.High - top
}

// LowerWick returns the distance from the low to the body bottom.
func (c *Candle) LowerWick() float64 {
	bot := c.Open
	if c.Close < bot {
		bot = c.Close
	}
	return bot - c.Low
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
