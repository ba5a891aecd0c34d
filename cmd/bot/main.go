// cmd/bot runs the live spot trading engine: it polls the venue for candles
// (optionally supplemented by the trade websocket), feeds them through the
// indicator and pattern pipeline, and lets the decision loop open and close
// positions. Paper mode (the default) fills orders locally against the last
// observed price instead of sending them to the venue.
//
// Usage:
//
//	PAPER_MODE=true go run ./cmd/bot
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"spotenginev1/config"
	"spotenginev1/internal/bot"
	"spotenginev1/internal/execution"
	"spotenginev1/internal/indicator"
	"spotenginev1/internal/logger"
	"spotenginev1/internal/marketdata/feed"
	"spotenginev1/internal/metrics"
	"spotenginev1/internal/model"
	"spotenginev1/internal/notification"
	"spotenginev1/internal/pattern"
	"spotenginev1/internal/position"
	siggen "spotenginev1/internal/signal"
	redisstore "spotenginev1/internal/store/redis"
	sqlitestore "spotenginev1/internal/store/sqlite"
	"spotenginev1/pkg/spotapi"
)

// quoteDecimals is the raw-unit precision used for quote balances.
const quoteDecimals = 9

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[bot] starting...")

	cfg := config.Load()

	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	logg := logger.Init("spot-bot", level)

	// ---- Metrics + health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsServer := metrics.NewServer(cfg.MetricsAddr, health)
	metricsServer.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Printf("[bot] received %v, shutting down...", s)
		cancel()
	}()

	// ---- SQLite state store ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("[bot] mkdir %s failed: %v", dir, err)
		}
	}
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[bot] sqlite init failed: %v", err)
	}
	defer store.Close()
	store.OnCommit = func(d time.Duration) {
		prom.SQLiteCommitDur.Observe(d.Seconds())
	}

	// ---- Redis telemetry publisher (optional) ----
	var publisher *redisstore.Publisher
	if cfg.RedisAddr != "" {
		publisher, err = redisstore.New(redisstore.PublisherConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			OnBreakerChange: func(_, to redisstore.BreakerState) {
				prom.RedisBreakerState.Set(float64(to))
				if to == redisstore.BreakerOpen {
					prom.RedisBreakerTrips.Inc()
				}
			},
		})
		if err != nil {
			log.Printf("[bot] WARNING: redis init failed: %v (continuing without redis)", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	} else {
		log.Println("[bot] redis disabled (REDIS_ADDR empty)")
	}

	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), store.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, store.DB(), 10*time.Second)
	}

	// ---- Venue client ----
	client := spotapi.New(spotapi.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})
	if !cfg.PaperMode {
		loginCtx, loginCancel := context.WithTimeout(ctx, 15*time.Second)
		err = client.Login(loginCtx, cfg.ClientID, cfg.Password, cfg.TOTPSecret)
		loginCancel()
		if err != nil {
			log.Fatalf("[bot] venue login failed: %v", err)
		}
		client.SessionExpiryHook = func() {
			log.Println("[bot] session expired, refreshing...")
			refreshCtx, refreshCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer refreshCancel()
			if err := client.RefreshSession(refreshCtx); err != nil {
				log.Printf("[bot] session refresh failed: %v", err)
			}
		}
		defer func() {
			logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer logoutCancel()
			if err := client.Logout(logoutCtx); err != nil {
				log.Printf("[bot] logout failed: %v", err)
			}
		}()
		log.Printf("[bot] LIVE mode: market=%s quote=%s", cfg.Market, cfg.QuoteAsset)
	} else {
		log.Printf("[bot] PAPER mode: market=%s slippage=%.1fbps", cfg.Market, cfg.SlippageBps)
	}

	// ---- Candle sources ----
	baseTF := model.TF1m
	rest := feed.NewRESTSource(client, cfg.Market, baseTF.String())
	cached := feed.NewCachedSource(rest, feed.NewCache(cfg.CacheTTL, 64))

	var source model.CandleSource = cached
	if cfg.WSURL != "" {
		ws := feed.NewWSFeed(feed.WSConfig{
			URL:     cfg.WSURL,
			Market:  cfg.Market,
			TF:      baseTF,
			MaxKeep: cfg.FetchLimit,
		})
		ws.OnReconnect = func() {
			prom.WSReconnects.Inc()
		}
		go ws.Run(ctx)
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			var last uint64
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := ws.DroppedTicks(); n > last {
						prom.DroppedTicks.Add(float64(n - last))
						last = n
					}
				}
			}
		}()
		source = feed.NewChain(ws, cached)
		log.Printf("[bot] ws feed enabled: %s", cfg.WSURL)
	}
	source = feed.NewRecordedSource(source, store)

	// ---- Execution ----
	var b *bot.Bot
	var executor model.Executor
	var oracle model.BalanceOracle
	if cfg.PaperMode {
		executor = execution.NewPaperExecutor(func() float64 {
			if b == nil {
				return 0
			}
			return b.LastPrice()
		}, cfg.SlippageBps, quoteDecimals)
	} else {
		live := execution.NewLiveExecutor(client, cfg.Market, cfg.QuoteAsset)
		executor = live
		oracle = live
	}

	// ---- Position manager ----
	limits := position.Limits{
		MaxPositions:    cfg.MaxPositions,
		PositionSizePct: cfg.PositionSizePct,
		TakeProfitPct:   cfg.TakeProfitPct,
		StopLossPct:     cfg.StopLossPct,
		TrailingPct:     cfg.TrailingPct,
		MaxHold:         cfg.MaxHold,
		MaxDrawdownPct:  cfg.MaxDrawdownPct,
		ExitConfidence:  cfg.ExitConfidence,
		DriftWarnPct:    cfg.DriftWarnPct,
	}
	manager, err := position.NewManager(limits, store, cfg.StartingCapital, logg)
	if err != nil {
		log.Fatalf("[bot] position manager init failed: %v", err)
	}

	// ---- Signal generator ----
	var generator siggen.Generator
	switch strings.ToLower(os.Getenv("STRATEGY")) {
	case "", "fusion":
		generator = siggen.NewFusion(siggen.DefaultFusionConfig())
	case "vote":
		generator = siggen.NewVote(siggen.DefaultVoteConfig())
	default:
		log.Fatalf("[bot] unknown STRATEGY %q (want fusion or vote)", os.Getenv("STRATEGY"))
	}
	log.Printf("[bot] strategy: %s", generator.Name())

	// ---- Notifications ----
	notifiers := []model.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}

	// ---- Decision loop ----
	tfs := cfg.ParseTimeframes()
	if len(tfs) == 0 {
		log.Fatalf("[bot] no valid timeframes in %q", cfg.Timeframes)
	}

	deps := bot.Deps{
		Source:    source,
		Executor:  executor,
		Oracle:    oracle,
		Manager:   manager,
		Generator: generator,
		Detector:  pattern.NewDetector(pattern.DefaultConfig()),
		Notifier:  notification.NewMulti(notifiers...),
		Metrics:   prom,
		Health:    health,
		Log:       logg,
	}
	if publisher != nil {
		deps.Sink = publisher
	}

	b = bot.New(bot.Config{
		Market:        cfg.Market,
		PollInterval:  cfg.PollInterval,
		FetchLimit:    cfg.FetchLimit,
		BaseTF:        baseTF,
		Timeframes:    tfs,
		MinConfidence: cfg.MinConfidence,
		IndicatorCfg:  indicator.DefaultConfig(),
	}, deps)

	log.Printf("[bot] decision loop ready: poll=%v tfs=%v", cfg.PollInterval, cfg.Timeframes)
	if err := b.Run(ctx); err != nil {
		log.Printf("[bot] decision loop exited with error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Stop(shutdownCtx)
	log.Println("[bot] shutdown complete")
}
