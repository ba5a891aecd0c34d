package feed

import (
	"context"
	"errors"
	"log"
	"strings"

	"spotenginev1/internal/model"
)

// Chain tries each candle source in order until one returns data. The
// primary source comes first; a tick is only skipped when every source fails.
type Chain struct {
	sources []model.CandleSource
}

var _ model.CandleSource = (*Chain)(nil)

// NewChain builds a source failover chain.
func NewChain(sources ...model.CandleSource) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) FetchCandles(ctx context.Context, limit int) ([]model.Candle, error) {
	var errs []error
	for i, src := range c.sources {
		candles, err := src.FetchCandles(ctx, limit)
		if err == nil {
			return candles, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i < len(c.sources)-1 {
			log.Printf("[feed] %s failed, trying next source: %v", src.Name(), err)
		}
	}
	return nil, errors.Join(errs...)
}

func (c *Chain) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}
