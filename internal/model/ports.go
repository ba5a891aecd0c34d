package model

import (
	"context"
	"time"
)

// ── Collaborator Port Interfaces ──
// These interfaces decouple the decision core from concrete I/O adapters
// (HTTP/WS price feeds, venue execution, SQLite state, notifiers).

// CandleSource returns candles for the traded pair in ascending time order.
// An error or empty result means "no data this tick" — callers skip the
// tick and retry on the next one; it is never fatal.
type CandleSource interface {
	// FetchCandles returns up to limit base-timeframe candles, oldest first.
	FetchCandles(ctx context.Context, limit int) ([]Candle, error)

	// Name identifies the source in logs.
	Name() string
}

// BuyResult is the success envelope of an executed buy.
type BuyResult struct {
	EntryPrice     float64 `json:"entry_price"`
	FilledRaw      int64   `json:"filled_raw"` // token amount in raw base units
	FilledDecimals int     `json:"filled_decimals"`
	Signature      string  `json:"signature"` // opaque venue/tx identifier
}

// SellResult is the success envelope of an executed sell.
type SellResult struct {
	ExitPrice   float64 `json:"exit_price"`
	ProceedsRaw int64   `json:"proceeds_raw"` // quote proceeds in raw base units
	Signature   string  `json:"signature"`
}

// Executor performs trades on an opaque venue. A call either fully succeeds
// or is a no-op; partial fills are not modeled. Implementations may fall back
// across venues internally — callers only see the success/failure envelope.
type Executor interface {
	// Buy spends sizeBase quote currency on the traded asset.
	Buy(ctx context.Context, sizeBase float64) (*BuyResult, error)

	// Sell disposes sizeRaw raw units of the traded asset.
	Sell(ctx context.Context, sizeRaw int64, decimals int) (*SellResult, error)
}

// BalanceOracle reports the authoritative external account balance used to
// reconcile the capital ledger after closes.
type BalanceOracle interface {
	GetCapital(ctx context.Context) (float64, error)
}

// StateSchemaVersion is the current persisted snapshot schema version.
// Bump on any incompatible change to StateSnapshot or the trade record.
const StateSchemaVersion = 1

// StateSnapshot is the durable, resumable state of the position manager.
type StateSnapshot struct {
	Version         int        `json:"version"`
	Positions       []Position `json:"positions"`
	StartingCapital float64    `json:"starting_capital"`
	CurrentCapital  float64    `json:"current_capital"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// StateStore durably persists the manager snapshot and the append-only
// trade log. SaveState must be atomic: a crash mid-write never leaves a
// partially updated snapshot behind.
type StateStore interface {
	SaveState(snap StateSnapshot) error
	LoadState() (*StateSnapshot, error) // nil, nil when no prior state exists
	AppendTrade(trade Trade) error
	LoadTrades(limit int) ([]Trade, error)
	Close() error
}

// Notifier delivers out-of-band alerts for trade events. Failures are
// logged, never propagated into the trading path.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}
