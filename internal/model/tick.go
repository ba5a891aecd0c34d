package model

import "time"

// Tick is a single trade print from the websocket price stream.
// The synthetic candle builder aggregates ticks into base-timeframe candles
// when the primary HTTP feed is unavailable.
type Tick struct {
	Price float64   `json:"price"`
	Size  float64   `json:"size"` // base-asset quantity
	TS    time.Time `json:"ts"`   // UTC timestamp
}
