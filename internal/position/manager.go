// Package position owns the set of open positions and the capital ledger.
//
// The manager opens positions from executed buys, evaluates exit conditions
// every cycle in a fixed priority order, closes positions from executed
// sells, and durably persists state after every mutation so a restart
// resumes without losing position or capital state.
package position

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"spotenginev1/internal/model"
	"spotenginev1/internal/signal"
)

// ErrMaxPositions is returned by Open when the position cap is reached.
var ErrMaxPositions = errors.New("max open positions reached")

// Limits defines the configurable risk thresholds.
type Limits struct {
	MaxPositions    int           // concurrent position cap
	PositionSizePct float64       // % of current capital committed per entry
	TakeProfitPct   float64       // safety take-profit cap (pnl >= cap exits)
	StopLossPct     float64       // safety stop-loss floor (pnl <= -floor exits)
	TrailingPct     float64       // retreat from high-water mark; 0 disables
	MaxHold         time.Duration // max position age
	MaxDrawdownPct  float64       // halt threshold on capital decline
	ExitConfidence  float64       // sell-signal confidence that forces an exit
	DriftWarnPct    float64       // ledger-vs-oracle divergence that logs a warning
}

// DefaultLimits returns conservative defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPositions:    1,
		PositionSizePct: 25,
		TakeProfitPct:   25,
		StopLossPct:     10,
		TrailingPct:     5,
		MaxHold:         4 * time.Hour,
		MaxDrawdownPct:  20,
		ExitConfidence:  65,
		DriftWarnPct:    5,
	}
}

// ExitDecision is Monitor's synchronous verdict for one position. The caller
// invokes the Executor and feeds the result back into Close — the manager
// never executes trades itself.
type ExitDecision struct {
	Position   *model.Position
	Reason     model.ExitReason
	PnlPercent float64
}

// Manager tracks open positions and the capital ledger.
type Manager struct {
	mu     sync.Mutex
	limits Limits
	store  model.StateStore
	log    *slog.Logger

	positions map[string]*model.Position

	startingCapital float64
	currentCapital  float64
	lastGoodCapital float64 // fallback when a computed value is NaN/Inf
}

// NewManager creates a manager, resuming from persisted state when present;
// otherwise the ledger starts at startingCapital.
func NewManager(limits Limits, store model.StateStore, startingCapital float64, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		limits:          limits,
		store:           store,
		log:             log,
		positions:       make(map[string]*model.Position),
		startingCapital: startingCapital,
		currentCapital:  startingCapital,
		lastGoodCapital: startingCapital,
	}

	snap, err := store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if snap != nil {
		m.startingCapital = snap.StartingCapital
		m.currentCapital = snap.CurrentCapital
		m.lastGoodCapital = snap.CurrentCapital
		for i := range snap.Positions {
			p := snap.Positions[i]
			if p.Status == model.PositionOpen {
				m.positions[p.ID] = &p
			}
		}
		log.Info("resumed position state",
			slog.Int("open_positions", len(m.positions)),
			slog.Float64("current_capital", m.currentCapital),
			slog.Time("persisted_at", snap.UpdatedAt))
	}
	return m, nil
}

// Open creates a position from a successful buy execution. Rejected with
// ErrMaxPositions once the cap is reached; the caller must not have executed
// the buy in that case (HasMaxPositions gates entries first).
func (m *Manager) Open(res *model.BuyResult, sizeBase float64, sig signal.Signal, now time.Time) (*model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.positions) >= m.limits.MaxPositions {
		return nil, ErrMaxPositions
	}

	pos := &model.Position{
		ID:            uuid.NewString(),
		EntryTime:     now.UTC(),
		EntryPrice:    res.EntryPrice,
		SizeBase:      sizeBase,
		SizeQuoteRaw:  res.FilledRaw,
		QuoteDecimals: res.FilledDecimals,
		Status:        model.PositionOpen,
		OpenReason:    sig.Rationale(),
		OpenScore:     sig.Confidence,
		HighWater:     res.EntryPrice,
		EntryTxSig:    res.Signature,
	}
	m.positions[pos.ID] = pos

	if err := m.persistLocked(); err != nil {
		return nil, fmt.Errorf("persist after open: %w", err)
	}

	m.log.Info("position opened",
		slog.String("id", pos.ID),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("size_base", pos.SizeBase),
		slog.Int64("size_quote_raw", pos.SizeQuoteRaw),
		slog.Float64("signal_score", sig.Confidence),
		slog.String("reason", sig.Rationale()))
	return pos, nil
}

// Monitor evaluates exit triggers for every open position against the
// current candle and signal. Triggers fire in a fixed priority order —
// signal exit, take-profit cap, stop-loss floor, trailing stop, max hold —
// so exactly one reason is reported per position per cycle.
func (m *Manager) Monitor(c model.Candle, sig signal.Signal, now time.Time) []ExitDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	price := c.Close
	var decisions []ExitDecision

	for _, pos := range m.positions {
		if price > pos.HighWater {
			pos.HighWater = price
		}
		pnl := pos.PnlPercent(price)

		var reason model.ExitReason
		switch {
		case signal.ShouldExit(sig, m.limits.ExitConfidence):
			reason = model.ExitSignal
		case pnl >= m.limits.TakeProfitPct:
			reason = model.ExitMaxProfit
		case pnl <= -m.limits.StopLossPct:
			reason = model.ExitSafetySL
		case m.trailingHit(pos, price):
			reason = model.ExitTrailing
		case m.limits.MaxHold > 0 && pos.HoldDuration(now) >= m.limits.MaxHold:
			reason = model.ExitMaxHold
		default:
			m.log.Debug("position holding",
				slog.String("id", pos.ID),
				slog.Float64("pnl_pct", pnl),
				slog.Float64("price", price))
			continue
		}

		m.log.Info("exit condition met",
			slog.String("id", pos.ID),
			slog.String("exit_reason", string(reason)),
			slog.Float64("pnl_pct", pnl),
			slog.Float64("price", price))
		decisions = append(decisions, ExitDecision{Position: pos, Reason: reason, PnlPercent: pnl})
	}
	return decisions
}

// trailingHit reports a retreat of TrailingPct from the high-water mark.
// Only armed once the mark has moved above the entry price; pure losses are
// the stop-loss floor's job.
func (m *Manager) trailingHit(pos *model.Position, price float64) bool {
	if m.limits.TrailingPct <= 0 || pos.HighWater <= pos.EntryPrice {
		return false
	}
	return price <= pos.HighWater*(1-m.limits.TrailingPct/100)
}

// Close transitions a position Open→Closed, appends the trade record, and
// updates the ledger. Pnl is computed from entry/exit prices, not from the
// ledger delta; fees and slippage make the two diverge and reconciliation
// against the balance oracle resolves that divergence.
func (m *Manager) Close(pos *model.Position, exitPrice float64, txSig string, reason model.ExitReason, now time.Time) (*model.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.positions[pos.ID]
	if !ok || existing.Status != model.PositionOpen {
		return nil, fmt.Errorf("position %s is not open", pos.ID)
	}

	pnl := existing.PnlPercent(exitPrice)
	existing.Status = model.PositionClosed
	delete(m.positions, pos.ID)

	trade := &model.Trade{
		ID:           uuid.NewString(),
		PositionID:   existing.ID,
		EntryTime:    existing.EntryTime,
		ExitTime:     now.UTC(),
		HoldDuration: now.Sub(existing.EntryTime),
		EntryPrice:   existing.EntryPrice,
		ExitPrice:    exitPrice,
		SizeBase:     existing.SizeBase,
		PnlPercent:   pnl,
		ExitReason:   reason,
		ExitTxSig:    txSig,
	}

	// Approximate the capital effect from signal-price pnl. The balance
	// oracle overwrites this on the next reconcile.
	m.setCapitalLocked(m.currentCapital + existing.SizeBase*pnl/100)

	if err := m.store.AppendTrade(*trade); err != nil {
		return nil, fmt.Errorf("append trade: %w", err)
	}
	if err := m.persistLocked(); err != nil {
		return nil, fmt.Errorf("persist after close: %w", err)
	}

	m.log.Info("position closed",
		slog.String("id", existing.ID),
		slog.String("exit_reason", string(reason)),
		slog.Float64("entry_price", existing.EntryPrice),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("pnl_pct", pnl),
		slog.Duration("held", trade.HoldDuration),
		slog.Float64("current_capital", m.currentCapital))
	return trade, nil
}

// Reconcile overwrites the ledger from the authoritative external balance.
// The oracle always wins; a divergence beyond DriftWarnPct is logged and
// reported to the caller so silent fee/slippage drift cannot accumulate
// unnoticed. Returns the relative drift percentage and whether it crossed
// the configured bound.
func (m *Manager) Reconcile(balance float64) (driftPct float64, drifted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if math.IsNaN(balance) || math.IsInf(balance, 0) || balance < 0 {
		m.log.Error("ignoring invalid balance from oracle", slog.Float64("balance", balance))
		return 0, false
	}

	if m.currentCapital > 0 {
		driftPct = math.Abs(balance-m.currentCapital) / m.currentCapital * 100
		if driftPct >= m.limits.DriftWarnPct {
			drifted = true
			m.log.Warn("ledger drift beyond bound",
				slog.Float64("ledger", m.currentCapital),
				slog.Float64("oracle", balance),
				slog.Float64("drift_pct", driftPct))
		}
	}

	m.currentCapital = balance
	m.lastGoodCapital = balance
	if err := m.persistLocked(); err != nil {
		m.log.Error("persist after reconcile failed", slog.Any("error", err))
	}
	return driftPct, drifted
}

// setCapitalLocked applies a computed capital value with a NaN/Inf guard:
// a corrupted computation falls back to the last known authoritative value.
func (m *Manager) setCapitalLocked(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		m.log.Error("computed capital invalid, keeping last known value",
			slog.Float64("last_good", m.lastGoodCapital))
		m.currentCapital = m.lastGoodCapital
		return
	}
	m.currentCapital = v
	m.lastGoodCapital = v
}

// Limits returns the configured risk thresholds.
func (m *Manager) Limits() Limits {
	return m.limits
}

// HasMaxPositions reports whether the position cap is reached.
func (m *Manager) HasMaxPositions() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.positions) >= m.limits.MaxPositions
}

// IsMaxDrawdownReached reports (start−current)/start×100 >= threshold.
func (m *Manager) IsMaxDrawdownReached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startingCapital <= 0 {
		return false
	}
	drawdown := (m.startingCapital - m.currentCapital) / m.startingCapital * 100
	return drawdown >= m.limits.MaxDrawdownPct
}

// PositionSize returns the capital to commit to the next entry.
func (m *Manager) PositionSize() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentCapital * m.limits.PositionSizePct / 100
}

// OpenPositions returns a snapshot of all open positions.
func (m *Manager) OpenPositions() []model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// Capital returns (startingCapital, currentCapital).
func (m *Manager) Capital() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startingCapital, m.currentCapital
}

// Persist flushes the current snapshot to the state store. The poll loop
// calls this on shutdown so an abandoned tick cannot lose state.
func (m *Manager) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistLocked()
}

func (m *Manager) persistLocked() error {
	snap := model.StateSnapshot{
		Version:         model.StateSchemaVersion,
		Positions:       make([]model.Position, 0, len(m.positions)),
		StartingCapital: m.startingCapital,
		CurrentCapital:  m.currentCapital,
		UpdatedAt:       time.Now().UTC(),
	}
	for _, p := range m.positions {
		snap.Positions = append(snap.Positions, *p)
	}
	return m.store.SaveState(snap)
}
