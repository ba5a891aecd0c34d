package feed

import (
	"context"
	"log"
	"time"

	"spotenginev1/internal/model"
)

// CandleSink persists base candles for warmup and backtesting.
type CandleSink interface {
	SaveCandles(candles []model.Candle) error
}

// RecordedSource tees every candle fetched from the wrapped source into a
// sink, skipping candles at or before the newest one already saved. Sink
// failures are logged and never block the fetch path.
type RecordedSource struct {
	src   model.CandleSource
	sink  CandleSink
	saved time.Time // open time of the newest persisted candle
}

var _ model.CandleSource = (*RecordedSource)(nil)

// NewRecordedSource wraps src so fetched candles are persisted to sink.
func NewRecordedSource(src model.CandleSource, sink CandleSink) *RecordedSource {
	return &RecordedSource{src: src, sink: sink}
}

// FetchCandles implements model.CandleSource.
func (s *RecordedSource) FetchCandles(ctx context.Context, limit int) ([]model.Candle, error) {
	candles, err := s.src.FetchCandles(ctx, limit)
	if err != nil {
		return nil, err
	}

	var fresh []model.Candle
	for _, c := range candles {
		if c.OpenTime.After(s.saved) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		if err := s.sink.SaveCandles(fresh); err != nil {
			log.Printf("[feed] candle persist failed (%d candles): %v", len(fresh), err)
		} else {
			s.saved = fresh[len(fresh)-1].OpenTime
		}
	}
	return candles, nil
}

// Name implements model.CandleSource.
func (s *RecordedSource) Name() string { return s.src.Name() }
