package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the decision engine.
type Metrics struct {
	DecisionTicksTotal prometheus.Counter
	SkippedTicksTotal  *prometheus.CounterVec // labels: reason=feed|halted
	SignalsTotal       *prometheus.CounterVec // labels: action
	TradesTotal        *prometheus.CounterVec // labels: exit_reason
	TradePnlPercent    prometheus.Histogram

	PositionsOpen prometheus.Gauge
	Capital       prometheus.Gauge
	DrawdownPct   prometheus.Gauge
	DriftWarnings prometheus.Counter

	FeedFetchDur    prometheus.Histogram
	DecisionDur     prometheus.Histogram
	SQLiteCommitDur prometheus.Histogram

	WSReconnects prometheus.Counter
	DroppedTicks prometheus.Counter

	RedisBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		DecisionTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotengine_decision_ticks_total",
			Help: "Total decision ticks evaluated",
		}),
		SkippedTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotengine_skipped_ticks_total",
			Help: "Decision ticks skipped (by reason)",
		}, []string{"reason"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotengine_signals_total",
			Help: "Signals emitted by action",
		}, []string{"action"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spotengine_trades_total",
			Help: "Closed trades by exit reason",
		}, []string{"exit_reason"}),
		TradePnlPercent: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spotengine_trade_pnl_percent",
			Help:    "Realized pnl percent per closed trade",
			Buckets: []float64{-20, -10, -5, -2, -1, 0, 1, 2, 5, 10, 20, 50},
		}),

		PositionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spotengine_positions_open",
			Help: "Currently open positions",
		}),
		Capital: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spotengine_capital",
			Help: "Current capital in quote currency",
		}),
		DrawdownPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spotengine_drawdown_pct",
			Help: "Drawdown from starting capital in percent",
		}),
		DriftWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotengine_drift_warnings_total",
			Help: "Ledger vs balance oracle drift warnings",
		}),

		FeedFetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spotengine_feed_fetch_duration_seconds",
			Help:    "Candle fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		DecisionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spotengine_decision_duration_seconds",
			Help:    "Full decision tick latency (aggregate, indicators, signal, exits)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "spotengine_sqlite_commit_duration_seconds",
			Help:    "State snapshot commit latency",
			Buckets: prometheus.DefBuckets,
		}),

		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotengine_ws_reconnects_total",
			Help: "Total websocket reconnection attempts",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotengine_dropped_ticks_total",
			Help: "Trade ticks dropped by the ring buffer",
		}),

		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spotengine_redis_breaker_state",
			Help: "Redis publish breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spotengine_redis_breaker_trips_total",
			Help: "Times the Redis publish breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.DecisionTicksTotal,
		m.SkippedTicksTotal,
		m.SignalsTotal,
		m.TradesTotal,
		m.TradePnlPercent,
		m.PositionsOpen,
		m.Capital,
		m.DrawdownPct,
		m.DriftWarnings,
		m.FeedFetchDur,
		m.DecisionDur,
		m.SQLiteCommitDur,
		m.WSReconnects,
		m.DroppedTicks,
		m.RedisBreakerState,
		m.RedisBreakerTrips,
	)

	return m
}

// HealthStatus represents the engine health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedOK         bool      `json:"feed_ok"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	Halted         bool      `json:"halted"`
	OpenPositions  int       `json:"open_positions"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedOK(v bool) {
	h.mu.Lock()
	h.FeedOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetHalted(v bool) {
	h.mu.Lock()
	h.Halted = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetOpenPositions(n int) {
	h.mu.Lock()
	h.OpenPositions = n
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the state database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedOK || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if h.Halted {
		overallStatus = "halted"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		FeedOK          bool    `json:"feed_ok"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		Halted          bool    `json:"halted"`
		OpenPositions   int     `json:"open_positions"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		FeedOK:          h.FeedOK,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Halted:          h.Halted,
		OpenPositions:   h.OpenPositions,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
