// Package notification delivers trading alerts (position opened/closed,
// drawdown halt, drift warnings) to external channels: Telegram, generic
// webhooks, or the process log.
package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"spotenginev1/internal/model"
)

// LogNotifier logs alerts to the process log. Useful for development and as
// the default when no channel is configured.
type LogNotifier struct{}

var _ model.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, subject, message string) error {
	log.Printf("[notify] %s: %s", subject, message)
	return nil
}

// Multi fans an alert out to several channels. Delivery is best-effort:
// one failing channel does not stop the others, and the first error is
// returned.
type Multi struct {
	notifiers []model.Notifier
}

var _ model.Notifier = (*Multi)(nil)

// NewMulti combines notifiers into one.
func NewMulti(notifiers ...model.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, subject, message string) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, subject, message); err != nil {
			log.Printf("[notify] delivery failed: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// ---- message builders for trading events ----

// TradeOpened formats the position-opened alert.
func TradeOpened(p *model.Position) (subject, message string) {
	subject = "Position opened"
	message = fmt.Sprintf("entry %.6f, size %.2f, confidence %.1f\n%s",
		p.EntryPrice, p.SizeBase, p.OpenScore, p.OpenReason)
	return subject, message
}

// TradeClosed formats the trade-closed alert.
func TradeClosed(t *model.Trade) (subject, message string) {
	subject = fmt.Sprintf("Trade closed (%s)", t.ExitReason)
	message = fmt.Sprintf("entry %.6f → exit %.6f, pnl %+.2f%%, held %s",
		t.EntryPrice, t.ExitPrice, t.PnlPercent, t.HoldDuration.Round(time.Second))
	return subject, message
}

// DrawdownHalt formats the max-drawdown halt alert.
func DrawdownHalt(startingCapital, currentCapital, thresholdPct float64) (subject, message string) {
	subject = "Trading halted: max drawdown"
	message = fmt.Sprintf("capital %.2f of %.2f starting (threshold %.1f%%), no new entries",
		currentCapital, startingCapital, thresholdPct)
	return subject, message
}

// DriftWarning formats the ledger-vs-balance drift alert.
func DriftWarning(ledger, oracle, driftPct float64) (subject, message string) {
	subject = "Capital drift detected"
	message = fmt.Sprintf("ledger %.2f vs balance %.2f (%.1f%% drift), balance wins",
		ledger, oracle, driftPct)
	return subject, message
}
