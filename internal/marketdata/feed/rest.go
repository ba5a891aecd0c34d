// Package feed provides candle sources for the decision loop: a REST poller
// against the spot exchange API, a websocket tick feed that builds synthetic
// candles, a TTL cache wrapper, and a failover chain across sources.
package feed

import (
	"context"
	"fmt"
	"log"
	"time"

	"spotenginev1/internal/model"
	"spotenginev1/pkg/spotapi"
)

// RESTSource fetches closed base-timeframe candles over the venue REST API.
type RESTSource struct {
	client   *spotapi.Client
	market   string
	interval string
}

var _ model.CandleSource = (*RESTSource)(nil)

// NewRESTSource creates a REST candle source. interval is the venue interval
// string for the base timeframe, e.g. "1m".
func NewRESTSource(client *spotapi.Client, market, interval string) *RESTSource {
	return &RESTSource{client: client, market: market, interval: interval}
}

// FetchCandles returns up to limit most recent closed candles, oldest first.
// Malformed rows are dropped, not propagated.
func (s *RESTSource) FetchCandles(ctx context.Context, limit int) ([]model.Candle, error) {
	klines, err := s.client.GetKlines(ctx, s.market, s.interval, limit)
	if err != nil {
		return nil, fmt.Errorf("rest source: %w", err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c := model.Candle{
			OpenTime: time.Unix(k.OpenTime, 0).UTC(),
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
		}
		if !c.Valid() {
			log.Printf("[feed] dropping malformed kline at %d", k.OpenTime)
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (s *RESTSource) Name() string {
	return "rest:" + s.market
}
