// Package redis publishes live engine telemetry (signals, closed trades,
// state snapshots) to Redis so dashboards and other consumers can follow the
// bot without touching its SQLite state. All writes are best-effort and go
// through a circuit breaker: the decision loop never blocks on Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"spotenginev1/internal/model"
	"spotenginev1/internal/signal"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: enough for a few days of 5m decision ticks.
	signalStreamMaxLen = 2000
	tradeStreamMaxLen  = 5000
	defaultLatestTTL   = 30 * time.Minute

	signalStream  = "spot:signals"
	tradeStream   = "spot:trades"
	signalLatest  = "spot:signal:latest"
	stateLatest   = "spot:state:latest"
	signalChannel = "pub:spot:signal"
	tradeChannel  = "pub:spot:trade"
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	// OnBreakerChange is invoked on every publish-breaker transition,
	// in addition to the built-in log line. Optional.
	OnBreakerChange func(from, to BreakerState)
}

// Publisher writes signals, trades, and state snapshots to Redis Streams
// plus TTL'd latest keys. A nil *Publisher is valid and drops everything,
// so the bot runs unchanged when Redis is not configured.
type Publisher struct {
	client  *goredis.Client
	breaker *Breaker
}

// New connects to Redis and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	b := NewBreaker(5, 10*time.Second)
	b.OnStateChange = func(from, to BreakerState) {
		log.Printf("[redis] breaker %s -> %s", from, to)
		if cfg.OnBreakerChange != nil {
			cfg.OnBreakerChange(from, to)
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, breaker: b}, nil
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client {
	if p == nil {
		return nil
	}
	return p.client
}

// PublishSignal records one decision-tick signal: XADD + SET latest + PUBLISH
// in a single pipeline.
func (p *Publisher) PublishSignal(ctx context.Context, s signal.Signal) {
	if p == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		log.Printf("[redis] marshal signal: %v", err)
		return
	}
	p.publish(ctx, func(pipe goredis.Pipeliner) {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: signalStream,
			MaxLen: signalStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		})
		pipe.Set(ctx, signalLatest, string(data), defaultLatestTTL)
		pipe.Publish(ctx, signalChannel, string(data))
	})
}

// PublishTrade records a closed trade.
func (p *Publisher) PublishTrade(ctx context.Context, t model.Trade) {
	if p == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		log.Printf("[redis] marshal trade: %v", err)
		return
	}
	p.publish(ctx, func(pipe goredis.Pipeliner) {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: tradeStream,
			MaxLen: tradeStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": string(data)},
		})
		pipe.Publish(ctx, tradeChannel, string(data))
	})
}

// PublishState mirrors the latest state snapshot under a TTL'd key.
// No stream: only the current value is interesting.
func (p *Publisher) PublishState(ctx context.Context, snap model.StateSnapshot) {
	if p == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[redis] marshal state: %v", err)
		return
	}
	p.publish(ctx, func(pipe goredis.Pipeliner) {
		pipe.Set(ctx, stateLatest, string(data), defaultLatestTTL)
	})
}

func (p *Publisher) publish(ctx context.Context, build func(goredis.Pipeliner)) {
	err := p.breaker.Do(func() error {
		pipe := p.client.Pipeline()
		build(pipe)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && err != ErrBreakerOpen {
		log.Printf("[redis] publish error: %v", err)
	}
}

// Close closes the Redis client. Safe on nil.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
