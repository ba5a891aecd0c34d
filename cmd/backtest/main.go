// cmd/backtest replays historical base candles from SQLite through the full
// decision loop with a paper executor, then prints the resulting trade log.
// It validates strategy tuning without live market data.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/spotengine.db --from=0 --strategy=fusion
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"spotenginev1/internal/bot"
	"spotenginev1/internal/execution"
	"spotenginev1/internal/indicator"
	"spotenginev1/internal/logger"
	"spotenginev1/internal/marketdata/replay"
	"spotenginev1/internal/model"
	"spotenginev1/internal/notification"
	"spotenginev1/internal/pattern"
	"spotenginev1/internal/position"
	siggen "spotenginev1/internal/signal"
	sqlitestore "spotenginev1/internal/store/sqlite"
)

const quoteDecimals = 9

// cursorSource serves the decision loop a sliding window over replayed
// candles, standing in for the live feed.
type cursorSource struct {
	window  []model.Candle
	maxKeep int
}

func (s *cursorSource) push(c model.Candle) {
	s.window = append(s.window, c)
	if len(s.window) > s.maxKeep {
		s.window = s.window[len(s.window)-s.maxKeep:]
	}
}

func (s *cursorSource) FetchCandles(_ context.Context, limit int) ([]model.Candle, error) {
	if len(s.window) == 0 {
		return nil, fmt.Errorf("replay: no candles yet")
	}
	n := len(s.window)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Candle, n)
	copy(out, s.window[len(s.window)-n:])
	return out, nil
}

func (s *cursorSource) Name() string { return "replay" }

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	dbPath := flag.String("db", "data/spotengine.db", "SQLite database holding historical candles")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime)")
	market := flag.String("market", "SOL-USDC", "Market label for the replayed candles")
	strategy := flag.String("strategy", "fusion", "Signal strategy: fusion or vote")
	tfStr := flag.String("tf", "5m,15m,1h", "Comma-separated decision timeframes")
	capital := flag.Float64("capital", 1000, "Starting capital in quote units")
	minConf := flag.Float64("min-confidence", 60, "Minimum entry confidence")
	fetchLimit := flag.Int("limit", 500, "Base candles visible to the loop per tick")
	flag.Parse()

	logg := logger.Init("backtest", slog.LevelWarn)

	// Historical candles live in the production database; backtest state
	// goes to a throwaway file so real positions are never touched.
	history, err := sqlitestore.New(sqlitestore.Config{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer history.Close()

	statePath := filepath.Join(os.TempDir(), fmt.Sprintf("spotengine-backtest-%d.db", os.Getpid()))
	defer os.Remove(statePath)
	state, err := sqlitestore.New(sqlitestore.Config{DBPath: statePath})
	if err != nil {
		log.Fatalf("[backtest] state db init failed: %v", err)
	}
	defer state.Close()

	var tfs []model.Timeframe
	for _, s := range strings.Split(*tfStr, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			log.Fatalf("[backtest] bad timeframe %q: %v", s, err)
		}
		tfs = append(tfs, model.Timeframe(d))
	}
	if len(tfs) == 0 {
		log.Fatal("[backtest] no valid timeframes specified")
	}

	var generator siggen.Generator
	switch *strategy {
	case "fusion":
		generator = siggen.NewFusion(siggen.DefaultFusionConfig())
	case "vote":
		generator = siggen.NewVote(siggen.DefaultVoteConfig())
	default:
		log.Fatalf("[backtest] unknown strategy %q (want fusion or vote)", *strategy)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	source := &cursorSource{maxKeep: *fetchLimit}

	// The clock follows the replayed candles so hold-time and drawdown
	// checks see historical time, not wall time.
	var clock time.Time
	var b *bot.Bot

	executor := execution.NewPaperExecutor(func() float64 {
		if b == nil {
			return 0
		}
		return b.LastPrice()
	}, 0, quoteDecimals)

	manager, err := position.NewManager(position.DefaultLimits(), state, *capital, logg)
	if err != nil {
		log.Fatalf("[backtest] position manager init failed: %v", err)
	}

	b = bot.New(bot.Config{
		Market:        *market,
		PollInterval:  time.Minute,
		FetchLimit:    *fetchLimit,
		BaseTF:        model.TF1m,
		Timeframes:    tfs,
		MinConfidence: *minConf,
		IndicatorCfg:  indicator.DefaultConfig(),
	}, bot.Deps{
		Source:    source,
		Executor:  executor,
		Manager:   manager,
		Generator: generator,
		Detector:  pattern.NewDetector(pattern.DefaultConfig()),
		Notifier:  notification.NewLogNotifier(),
		Log:       logg,
		Now:       func() time.Time { return clock },
	})

	candleCh := make(chan model.Candle, 1000)
	replayer := replay.New(history)

	go func() {
		defer close(candleCh)
		n, err := replayer.Run(ctx, *fromTS, *speed, candleCh)
		if err != nil && ctx.Err() == nil {
			log.Printf("[backtest] replay error after %d candles: %v", n, err)
		}
	}()

	start := time.Now()
	ticks := 0
	for c := range candleCh {
		source.push(c)
		clock = c.OpenTime.Add(model.TF1m.Duration())
		b.Tick(ctx)
		ticks++
	}

	printSummary(manager, state, ticks, time.Since(start))
}

func printSummary(manager *position.Manager, state *sqlitestore.Store, ticks int, elapsed time.Duration) {
	trades, err := state.LoadTrades(0)
	if err != nil {
		log.Printf("[backtest] trade load failed: %v", err)
	}

	starting, current := manager.Capital()
	wins := 0
	var pnlSum float64
	for _, t := range trades {
		if t.PnlPercent > 0 {
			wins++
		}
		pnlSum += t.PnlPercent
	}

	fmt.Printf("\nbacktest summary\n")
	fmt.Printf("  ticks replayed: %d (%.1fs)\n", ticks, elapsed.Seconds())
	fmt.Printf("  trades closed:  %d\n", len(trades))
	if len(trades) > 0 {
		fmt.Printf("  win rate:       %.1f%%\n", float64(wins)/float64(len(trades))*100)
		fmt.Printf("  avg pnl/trade:  %+.2f%%\n", pnlSum/float64(len(trades)))
	}
	fmt.Printf("  open positions: %d\n", len(manager.OpenPositions()))
	fmt.Printf("  capital:        %.2f -> %.2f (%+.2f%%)\n",
		starting, current, (current-starting)/starting*100)

	// LoadTrades returns newest first; print oldest first.
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		id := t.PositionID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Printf("  %s  %s  %.4f -> %.4f  %+.2f%%  hold=%s  %s\n",
			t.ExitTime.Format("2006-01-02 15:04"), id,
			t.EntryPrice, t.ExitPrice, t.PnlPercent,
			t.HoldDuration.Truncate(time.Second), t.ExitReason)
	}
}
