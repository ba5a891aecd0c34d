package model

import (
	"encoding/json"
	"time"
)

// ExitReason identifies which exit trigger closed a position.
// Triggers are evaluated in a fixed priority order, so exactly one fires.
type ExitReason string

const (
	ExitSignal    ExitReason = "SIGNAL"     // sell signal crossed the exit threshold
	ExitMaxProfit ExitReason = "MAX_PROFIT" // safety take-profit cap
	ExitSafetySL  ExitReason = "SAFETY_SL"  // safety stop-loss floor
	ExitTrailing  ExitReason = "TRAILING"   // retreat from the high-water mark
	ExitMaxHold   ExitReason = "MAX_HOLD"   // max hold duration exceeded
)

// Trade is the terminal, append-only record of a closed position.
// PnlPercent is computed from entry/exit prices, not from the ledger delta;
// the two diverge under fees and slippage and that divergence is intentional.
type Trade struct {
	ID           string        `json:"id"`
	PositionID   string        `json:"position_id"`
	EntryTime    time.Time     `json:"entry_time"`
	ExitTime     time.Time     `json:"exit_time"`
	HoldDuration time.Duration `json:"hold_duration"`
	EntryPrice   float64       `json:"entry_price"`
	ExitPrice    float64       `json:"exit_price"`
	SizeBase     float64       `json:"size_base"`
	PnlPercent   float64       `json:"pnl_percent"`
	ExitReason   ExitReason    `json:"exit_reason"`
	ExitTxSig    string        `json:"exit_tx_sig,omitempty"`
}

// JSON returns the JSON-encoded trade.
func (t *Trade) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
