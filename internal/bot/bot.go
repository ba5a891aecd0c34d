// Package bot runs the decision loop: fetch base candles, aggregate into the
// configured timeframes, update indicators, detect patterns, generate a
// signal, monitor exits, and gate entries through the risk limits. One
// goroutine owns the whole cycle; every collaborator is injected.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"spotenginev1/internal/indicator"
	"spotenginev1/internal/marketdata/aggregate"
	"spotenginev1/internal/metrics"
	"spotenginev1/internal/model"
	"spotenginev1/internal/notification"
	"spotenginev1/internal/pattern"
	"spotenginev1/internal/position"
	"spotenginev1/internal/signal"
)

// TelemetrySink receives best-effort live telemetry. Implemented by the
// Redis publisher; nil disables publishing.
type TelemetrySink interface {
	PublishSignal(ctx context.Context, s signal.Signal)
	PublishTrade(ctx context.Context, t model.Trade)
	PublishState(ctx context.Context, snap model.StateSnapshot)
}

// Config tunes the decision loop. Immutable after New.
type Config struct {
	Market        string
	PollInterval  time.Duration
	FetchLimit    int
	BaseTF        model.Timeframe
	Timeframes    []model.Timeframe // first entry is the primary decision timeframe
	MinConfidence float64
	IndicatorCfg  indicator.Config
}

// Deps are the bot's collaborators. Oracle, Sink, Notifier, Metrics, and
// Health may be nil; Now defaults to time.Now.
type Deps struct {
	Source    model.CandleSource
	Executor  model.Executor
	Oracle    model.BalanceOracle
	Manager   *position.Manager
	Generator signal.Generator
	Detector  *pattern.Detector
	Sink      TelemetrySink
	Notifier  model.Notifier
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	Log       *slog.Logger
	Now       func() time.Time
}

// Bot is the decision engine.
type Bot struct {
	cfg Config
	d   Deps

	engines       map[model.Timeframe]*indicator.Engine
	snaps         map[model.Timeframe]indicator.Snapshot
	lastProcessed map[model.Timeframe]time.Time

	lastPrice    atomic.Uint64 // float64 bits of the latest close
	haltNotified bool
}

// New creates a bot. Panics on an empty timeframe list; everything else is
// the caller's wiring problem.
func New(cfg Config, d Deps) *Bot {
	if len(cfg.Timeframes) == 0 {
		panic("bot: no timeframes configured")
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	engines := make(map[model.Timeframe]*indicator.Engine, len(cfg.Timeframes))
	for _, tf := range cfg.Timeframes {
		engines[tf] = indicator.NewEngine(cfg.IndicatorCfg)
	}

	return &Bot{
		cfg:           cfg,
		d:             d,
		engines:       engines,
		snaps:         make(map[model.Timeframe]indicator.Snapshot, len(cfg.Timeframes)),
		lastProcessed: make(map[model.Timeframe]time.Time, len(cfg.Timeframes)),
	}
}

// LastPrice returns the latest observed close, for executor price references.
func (b *Bot) LastPrice() float64 {
	return math.Float64frombits(b.lastPrice.Load())
}

// Run executes decision ticks until ctx is cancelled. The tick in flight
// always completes; state is persisted before returning.
func (b *Bot) Run(ctx context.Context) error {
	b.d.Log.Info("decision loop starting",
		slog.String("market", b.cfg.Market),
		slog.Duration("poll_interval", b.cfg.PollInterval),
		slog.Int("timeframes", len(b.cfg.Timeframes)))

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	b.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			b.d.Log.Info("decision loop stopping, persisting state")
			if err := b.d.Manager.Persist(); err != nil {
				return fmt.Errorf("persist on shutdown: %w", err)
			}
			return nil
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick runs one full decision cycle. Exits are always evaluated before
// entries so capital freed this cycle is available next cycle, never this
// one. A feed failure skips the cycle without touching positions.
func (b *Bot) Tick(ctx context.Context) {
	now := b.d.Now()
	tickCtx, cancel := context.WithTimeout(ctx, b.cfg.PollInterval)
	defer cancel()

	started := time.Now()
	if b.d.Metrics != nil {
		b.d.Metrics.DecisionTicksTotal.Inc()
	}

	fetchStart := time.Now()
	candles, err := b.d.Source.FetchCandles(tickCtx, b.cfg.FetchLimit)
	if b.d.Metrics != nil {
		b.d.Metrics.FeedFetchDur.Observe(time.Since(fetchStart).Seconds())
	}
	if err != nil || len(candles) == 0 {
		b.d.Log.Warn("candle fetch failed, skipping tick", slog.Any("error", err))
		if b.d.Metrics != nil {
			b.d.Metrics.SkippedTicksTotal.WithLabelValues("feed").Inc()
		}
		if b.d.Health != nil {
			b.d.Health.SetFeedOK(false)
		}
		return
	}
	if b.d.Health != nil {
		b.d.Health.SetFeedOK(true)
		b.d.Health.SetLastTickTime(now)
	}

	latest := candles[len(candles)-1]
	b.lastPrice.Store(math.Float64bits(latest.Close))

	frames := aggregate.Frames(candles, b.cfg.BaseTF, b.cfg.Timeframes)

	primary := b.cfg.Timeframes[0]
	primaryCandles := frames[primary]
	if len(primaryCandles) == 0 {
		b.d.Log.Warn("no candles on primary timeframe, skipping tick")
		if b.d.Metrics != nil {
			b.d.Metrics.SkippedTicksTotal.WithLabelValues("feed").Inc()
		}
		return
	}
	primaryCandle := primaryCandles[len(primaryCandles)-1]

	// Feed only completed buckets into each engine, and only ones newer
	// than the last processed bucket: the trailing aggregate is still
	// forming (its close changes until base candles fill it) and must
	// never enter the close series, while the watermark keeps updates
	// O(1) per new bucket across poll overlaps. The forming candle is
	// used solely for pricing and signal evaluation below.
	feedEnd := latest.OpenTime.Add(b.cfg.BaseTF.Duration())
	for _, tf := range b.cfg.Timeframes {
		eng := b.engines[tf]
		for _, c := range frames[tf] {
			if c.OpenTime.Add(tf.Duration()).After(feedEnd) {
				break
			}
			if !c.OpenTime.After(b.lastProcessed[tf]) {
				continue
			}
			b.snaps[tf] = eng.Update(c)
			b.lastProcessed[tf] = c.OpenTime
		}
	}

	if !b.snaps[primary].Ready {
		b.d.Log.Debug("indicators warming up",
			slog.Any("waiting", b.engines[primary].Warming()))
	}

	var patterns []pattern.Pattern
	for i, tf := range b.cfg.Timeframes {
		patterns = append(patterns, b.d.Detector.ScanLatest(frames[tf], i)...)
	}

	sig := b.d.Generator.Generate(signal.Input{
		Candle:   primaryCandle,
		Snap:     b.snaps[primary],
		Patterns: patterns,
	})
	if b.d.Metrics != nil {
		b.d.Metrics.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
	}
	if b.d.Sink != nil {
		b.d.Sink.PublishSignal(tickCtx, sig)
	}
	b.d.Log.Info("signal generated",
		slog.String("action", string(sig.Action)),
		slog.Float64("confidence", sig.Confidence),
		slog.String("reason", sig.Reason),
		slog.Float64("price", sig.Price))

	b.handleExits(tickCtx, primaryCandle, sig, now)
	b.reconcile(tickCtx)
	b.handleEntry(tickCtx, sig, now)
	b.publishGauges(tickCtx)

	if b.d.Metrics != nil {
		b.d.Metrics.DecisionDur.Observe(time.Since(started).Seconds())
	}
}

// handleExits executes every exit decision. A failed sell leaves the
// position open; the same trigger fires again next cycle.
func (b *Bot) handleExits(ctx context.Context, c model.Candle, sig signal.Signal, now time.Time) {
	for _, dec := range b.d.Manager.Monitor(c, sig, now) {
		res, err := b.d.Executor.Sell(ctx, dec.Position.SizeQuoteRaw, dec.Position.QuoteDecimals)
		if err != nil {
			b.d.Log.Error("exit sell failed, position stays open",
				slog.String("id", dec.Position.ID),
				slog.String("exit_reason", string(dec.Reason)),
				slog.Any("error", err))
			continue
		}

		trade, err := b.d.Manager.Close(dec.Position, res.ExitPrice, res.Signature, dec.Reason, now)
		if err != nil {
			b.d.Log.Error("close after sell failed", slog.Any("error", err))
			continue
		}

		if b.d.Metrics != nil {
			b.d.Metrics.TradesTotal.WithLabelValues(string(trade.ExitReason)).Inc()
			b.d.Metrics.TradePnlPercent.Observe(trade.PnlPercent)
		}
		if b.d.Sink != nil {
			b.d.Sink.PublishTrade(ctx, *trade)
		}
		if b.d.Notifier != nil {
			subject, message := notification.TradeClosed(trade)
			b.d.Notifier.Notify(ctx, subject, message)
		}
	}
}

// reconcile pulls the authoritative balance when an oracle is wired.
func (b *Bot) reconcile(ctx context.Context) {
	if b.d.Oracle == nil {
		return
	}
	balance, err := b.d.Oracle.GetCapital(ctx)
	if err != nil {
		b.d.Log.Warn("balance oracle unavailable", slog.Any("error", err))
		return
	}
	_, ledger := b.d.Manager.Capital()
	driftPct, drifted := b.d.Manager.Reconcile(balance)
	if drifted {
		if b.d.Metrics != nil {
			b.d.Metrics.DriftWarnings.Inc()
		}
		if b.d.Notifier != nil {
			subject, message := notification.DriftWarning(ledger, balance, driftPct)
			if err := b.d.Notifier.Notify(ctx, subject, message); err != nil {
				b.d.Log.Warn("drift alert failed", slog.Any("error", err))
			}
		}
	}
}

// handleEntry opens a position on a sufficiently confident buy signal,
// unless the position cap or the drawdown halt blocks it.
func (b *Bot) handleEntry(ctx context.Context, sig signal.Signal, now time.Time) {
	if sig.Action != signal.ActionBuy || sig.Confidence < b.cfg.MinConfidence {
		return
	}

	if b.d.Manager.HasMaxPositions() {
		b.d.Log.Debug("buy signal ignored: position cap reached")
		return
	}

	if b.d.Manager.IsMaxDrawdownReached() {
		if b.d.Metrics != nil {
			b.d.Metrics.SkippedTicksTotal.WithLabelValues("halted").Inc()
		}
		if b.d.Health != nil {
			b.d.Health.SetHalted(true)
		}
		if !b.haltNotified {
			b.haltNotified = true
			start, cur := b.d.Manager.Capital()
			b.d.Log.Error("max drawdown reached, entries halted",
				slog.Float64("starting_capital", start),
				slog.Float64("current_capital", cur))
			if b.d.Notifier != nil {
				subject, message := notification.DrawdownHalt(start, cur, b.d.Manager.Limits().MaxDrawdownPct)
				b.d.Notifier.Notify(ctx, subject, message)
			}
		}
		return
	}

	size := b.d.Manager.PositionSize()
	if size <= 0 {
		b.d.Log.Warn("buy signal ignored: no capital to commit")
		return
	}

	res, err := b.d.Executor.Buy(ctx, size)
	if err != nil {
		b.d.Log.Error("entry buy failed", slog.Any("error", err))
		return
	}

	pos, err := b.d.Manager.Open(res, size, sig, now)
	if err != nil {
		b.d.Log.Error("open after buy failed", slog.Any("error", err))
		return
	}

	if b.d.Notifier != nil {
		subject, message := notification.TradeOpened(pos)
		b.d.Notifier.Notify(ctx, subject, message)
	}
}

// publishGauges updates capital metrics and mirrors the state snapshot.
func (b *Bot) publishGauges(ctx context.Context) {
	open := b.d.Manager.OpenPositions()
	start, cur := b.d.Manager.Capital()

	if b.d.Health != nil {
		b.d.Health.SetOpenPositions(len(open))
	}
	if b.d.Metrics != nil {
		b.d.Metrics.PositionsOpen.Set(float64(len(open)))
		b.d.Metrics.Capital.Set(cur)
		if start > 0 {
			b.d.Metrics.DrawdownPct.Set((start - cur) / start * 100)
		}
	}
	if b.d.Sink != nil {
		b.d.Sink.PublishState(ctx, model.StateSnapshot{
			Version:         model.StateSchemaVersion,
			Positions:       open,
			StartingCapital: start,
			CurrentCapital:  cur,
			UpdatedAt:       time.Now().UTC(),
		})
	}
}
