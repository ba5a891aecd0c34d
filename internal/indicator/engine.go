package indicator

import "spotenginev1/internal/model"

// Config specifies the periods for every sub-indicator the engine maintains.
type Config struct {
	RSIPeriod  int
	BBPeriod   int
	BBK        float64
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	EMAPeriod  int // standalone EMA exposed in the snapshot
	FastSMA    int // crossover pair
	SlowSMA    int
	TrendSMMA  int // slow trend baseline for trend-alignment gating
	VolumeSMA  int // average volume window for spike detection
}

// DefaultConfig returns the conventional period set.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:  14,
		BBPeriod:   20,
		BBK:        2.0,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		EMAPeriod:  9,
		FastSMA:    9,
		SlowSMA:    21,
		TrendSMMA:  50,
		VolumeSMA:  20,
	}
}

// Snapshot is the composite indicator state after the latest update.
// Prev* fields carry the previous tick's moving averages so crossover
// conditions can be detected without the caller retaining history.
// Mutated only by Engine.Update; treat as a value.
type Snapshot struct {
	RSI   float64   `json:"rsi"`
	Bands Bands     `json:"bands"`
	MACD  MACDValue `json:"macd"`
	EMA   float64   `json:"ema"`

	FastSMA     float64 `json:"fast_sma"`
	SlowSMA     float64 `json:"slow_sma"`
	PrevFastSMA float64 `json:"prev_fast_sma"`
	PrevSlowSMA float64 `json:"prev_slow_sma"`

	Trend     float64 `json:"trend"`      // SMMA baseline
	AvgVolume float64 `json:"avg_volume"` // rolling mean volume

	Close  float64 `json:"close"`  // close that produced this snapshot
	Volume float64 `json:"volume"` // volume of that candle

	Ready bool `json:"ready"` // AND of all sub-indicator readiness
}

// GoldenCross reports a fast-over-slow SMA crossover on the latest tick.
func (s *Snapshot) GoldenCross() bool {
	return s.Ready && s.PrevFastSMA <= s.PrevSlowSMA && s.FastSMA > s.SlowSMA
}

// DeathCross reports a fast-under-slow SMA crossover on the latest tick.
func (s *Snapshot) DeathCross() bool {
	return s.Ready && s.PrevFastSMA >= s.PrevSlowSMA && s.FastSMA < s.SlowSMA
}

// Engine maintains the full streaming indicator set for one timeframe.
// Designed for single-goroutine usage — no locks needed. The only way to
// reach steady state is to replay candles through Update (see Warmup);
// there is no seed-from-summary shortcut.
type Engine struct {
	cfg Config

	rsi       *RSI
	bollinger *Bollinger
	macd      *MACD
	ema       *EMA
	fastSMA   *SMA
	slowSMA   *SMA
	trend     *SMMA
	volume    *SMA

	// priceFed fans Update and readiness checks out over every
	// close-driven sub-indicator; volume is fed separately.
	priceFed []Indicator

	snap Snapshot
}

// NewEngine creates an engine with the given periods.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:       cfg,
		rsi:       NewRSI(cfg.RSIPeriod),
		bollinger: NewBollinger(cfg.BBPeriod, cfg.BBK),
		macd:      NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		ema:       NewEMA(cfg.EMAPeriod),
		fastSMA:   NewSMA(cfg.FastSMA),
		slowSMA:   NewSMA(cfg.SlowSMA),
		trend:     NewSMMA(cfg.TrendSMMA),
		volume:    NewSMA(cfg.VolumeSMA),
	}
	e.priceFed = []Indicator{e.rsi, e.bollinger, e.macd, e.ema, e.fastSMA, e.slowSMA, e.trend}
	return e
}

// Update pushes one candle through every sub-indicator and returns the new
// composite snapshot. O(1) per call.
func (e *Engine) Update(c model.Candle) Snapshot {
	prevFast := e.fastSMA.Value()
	prevSlow := e.slowSMA.Value()

	price := c.Close
	for _, ind := range e.priceFed {
		ind.Update(price)
	}
	e.volume.Update(c.Volume)

	ready := e.volume.Ready()
	for _, ind := range e.priceFed {
		ready = ready && ind.Ready()
	}

	e.snap = Snapshot{
		RSI:         e.rsi.Value(),
		Bands:       e.bollinger.Bands(),
		MACD:        e.macd.MACD(),
		EMA:         e.ema.Value(),
		FastSMA:     e.fastSMA.Value(),
		SlowSMA:     e.slowSMA.Value(),
		PrevFastSMA: prevFast,
		PrevSlowSMA: prevSlow,
		Trend:       e.trend.Value(),
		AvgVolume:   e.volume.Value(),
		Close:       price,
		Volume:      c.Volume,
		Ready:       ready,
	}
	return e.snap
}

// Warming lists the names of sub-indicators that have not accumulated
// their configured period yet. Empty once the engine is ready.
func (e *Engine) Warming() []string {
	var out []string
	for _, ind := range e.priceFed {
		if !ind.Ready() {
			out = append(out, ind.Name())
		}
	}
	if !e.volume.Ready() {
		out = append(out, "VOL")
	}
	return out
}

// GetIndicators exposes the latest snapshot without advancing state.
func (e *Engine) GetIndicators() Snapshot { return e.snap }

// Warmup replays historical candles sequentially to reach steady state
// before live operation. Returns the snapshot after the last candle.
func (e *Engine) Warmup(candles []model.Candle) Snapshot {
	for _, c := range candles {
		e.Update(c)
	}
	return e.snap
}
