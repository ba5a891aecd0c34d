package model

import (
	"encoding/json"
	"time"
)

// PositionStatus is the lifecycle state of a position. Open → Closed, terminal.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is an open risk-bearing holding created by an executed buy.
// SizeQuoteRaw carries the received token amount in raw integer base units;
// QuoteDecimals converts it to a display value. Raw units are authoritative
// so repeated display rounding cannot drift the books.
type Position struct {
	ID            string         `json:"id"`
	EntryTime     time.Time      `json:"entry_time"`
	EntryPrice    float64        `json:"entry_price"`
	SizeBase      float64        `json:"size_base"` // committed risk capital (quote currency)
	SizeQuoteRaw  int64          `json:"size_quote_raw"`
	QuoteDecimals int            `json:"quote_decimals"`
	Status        PositionStatus `json:"status"`
	OpenReason    string         `json:"open_reason"` // rationale of the triggering signal
	OpenScore     float64        `json:"open_score"`  // confidence of the triggering signal
	HighWater     float64        `json:"high_water"`  // highest price seen since entry (trailing stop)
	EntryTxSig    string         `json:"entry_tx_sig,omitempty"`
}

// SizeQuote returns the display-value token amount.
func (p *Position) SizeQuote() float64 {
	return RawToFloat(p.SizeQuoteRaw, p.QuoteDecimals)
}

// PnlPercent computes the unrealized pnl against the given price.
func (p *Position) PnlPercent(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// HoldDuration returns how long the position has been open at now.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// JSON returns the JSON-encoded position.
func (p *Position) JSON() []byte {
	b, _ := json.Marshal(p)
	return b
}
