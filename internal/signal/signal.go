// Package signal fuses pattern and indicator evidence into one discrete
// trading signal per cycle.
//
// Two interchangeable generators exist: a weighted pattern/indicator fusion
// scorer and a fast confidence-vote scorer over a fixed condition set. Both
// report which conditions fired so trading history is reconstructable from
// logs alone.
package signal

import (
	"strings"
	"time"
)

// Action is the discrete decision of one cycle.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Signal is an immutable value produced once per cycle.
// Confidence is a 0-100 heuristic strength, not a calibrated probability.
type Signal struct {
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	Evidence   []string  `json:"evidence"` // conditions/patterns that fired
	Price      float64   `json:"price"`    // close the signal was derived from
	At         time.Time `json:"at"`
}

// Hold builds a hold signal with the given reason.
func Hold(reason string, price float64, at time.Time) Signal {
	return Signal{Action: ActionHold, Reason: reason, Price: price, At: at}
}

// Rationale renders the evidence list as one log-friendly string.
func (s *Signal) Rationale() string {
	if len(s.Evidence) == 0 {
		return s.Reason
	}
	return s.Reason + ": " + strings.Join(s.Evidence, ", ")
}

// ShouldExit reports whether a fresh signal justifies exiting a long
// position: a sell whose confidence meets the exit threshold.
func ShouldExit(s Signal, exitThreshold float64) bool {
	return s.Action == ActionSell && s.Confidence >= exitThreshold
}

// clamp bounds v to [0, 100].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
