package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"spotenginev1/internal/model"
	"spotenginev1/internal/ringbuf"

	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout   = 30 * time.Second
	wsMaxBackoff    = 30 * time.Second
	wsDrainInterval = 50 * time.Millisecond
)

// WSConfig configures the websocket tick feed.
type WSConfig struct {
	URL      string // e.g. "wss://stream.spotvenue.io/ws"
	Market   string
	TF       model.Timeframe // base timeframe for synthetic candles
	MaxKeep  int             // completed candles to retain
	RingSize int             // tick ring capacity
}

// WSFeed consumes the venue trade stream and builds synthetic base-timeframe
// candles from ticks. The read goroutine pushes ticks into an SPSC ring; a
// drain goroutine folds them into the builder, keeping JSON decode jitter off
// the aggregation path.
type WSFeed struct {
	cfg       WSConfig
	ring      *ringbuf.Ring
	builder   *Builder
	connected atomic.Bool

	// OnReconnect is invoked before every reconnect attempt. Optional.
	OnReconnect func()
}

var _ model.CandleSource = (*WSFeed)(nil)

type tradeMsg struct {
	Price float64 `json:"p,string"`
	Size  float64 `json:"s,string"`
	TS    int64   `json:"t"` // unix milliseconds
}

// NewWSFeed creates a websocket tick feed.
func NewWSFeed(cfg WSConfig) *WSFeed {
	if cfg.MaxKeep == 0 {
		cfg.MaxKeep = 1000
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = 4096
	}
	return &WSFeed{
		cfg:     cfg,
		ring:    ringbuf.New(cfg.RingSize),
		builder: NewBuilder(cfg.TF, cfg.MaxKeep),
	}
}

// Run connects and consumes the trade stream until ctx is cancelled,
// reconnecting with exponential backoff on failure.
func (f *WSFeed) Run(ctx context.Context) {
	go f.drain(ctx)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := f.consume(ctx)
		f.connected.Store(false)
		if ctx.Err() != nil {
			return
		}

		log.Printf("[ws] %s disconnected: %v (reconnect in %v)", f.cfg.Market, err, backoff)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > wsMaxBackoff {
			backoff = wsMaxBackoff
		}
	}
}

func (f *WSFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := map[string]string{"op": "subscribe", "channel": "trades", "market": f.cfg.Market}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.connected.Store(true)
	log.Printf("[ws] subscribed to trades for %s", f.cfg.Market)

	// Close the socket on cancel to break the blocking read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg tradeMsg
		if err := json.Unmarshal(data, &msg); err != nil || msg.Price <= 0 {
			continue
		}
		f.ring.Push(model.Tick{
			Price: msg.Price,
			Size:  msg.Size,
			TS:    time.UnixMilli(msg.TS).UTC(),
		})
	}
}

// drain moves ticks from the ring into the builder.
func (f *WSFeed) drain(ctx context.Context) {
	ticker := time.NewTicker(wsDrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				tick, ok := f.ring.Pop()
				if !ok {
					break
				}
				f.builder.AddTick(tick)
			}
		}
	}
}

// FetchCandles returns up to limit completed synthetic candles, oldest first.
// Fails while disconnected so the fallback chain can move on.
func (f *WSFeed) FetchCandles(ctx context.Context, limit int) ([]model.Candle, error) {
	if !f.connected.Load() {
		return nil, fmt.Errorf("ws feed %s disconnected", f.cfg.Market)
	}
	candles := f.builder.Completed(limit)
	if len(candles) == 0 {
		return nil, fmt.Errorf("ws feed %s has no completed candles yet", f.cfg.Market)
	}
	return candles, nil
}

func (f *WSFeed) Name() string {
	return "ws:" + f.cfg.Market
}

// DroppedTicks reports ring overflow for metrics.
func (f *WSFeed) DroppedTicks() uint64 {
	return f.ring.Overflow()
}
