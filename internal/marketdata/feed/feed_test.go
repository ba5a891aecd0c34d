package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"spotenginev1/internal/model"
)

// stubSource returns canned candles or an error.
type stubSource struct {
	name    string
	candles []model.Candle
	err     error
	calls   int
}

func (s *stubSource) FetchCandles(ctx context.Context, limit int) ([]model.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.candles, nil
}

func (s *stubSource) Name() string { return s.name }

func someCandles(n int) []model.Candle {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			OpenTime: t0.Add(time.Duration(i) * time.Minute),
			Open:     100, High: 101, Low: 99, Close: 100.5, Volume: 10,
		}
	}
	return out
}

func TestCacheHitWithinTTL(t *testing.T) {
	src := &stubSource{name: "stub", candles: someCandles(3)}
	cache := NewCache(time.Minute, 10)
	cs := NewCachedSource(src, cache)

	for i := 0; i < 3; i++ {
		got, err := cs.FetchCandles(context.Background(), 3)
		if err != nil {
			t.Fatalf("FetchCandles: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 candles, got %d", len(got))
		}
	}
	if src.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", src.calls)
	}
}

func TestCacheExpiry(t *testing.T) {
	src := &stubSource{name: "stub", candles: someCandles(2)}
	cache := NewCache(time.Minute, 10)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cs := NewCachedSource(src, cache)
	cs.FetchCandles(context.Background(), 2)

	now = now.Add(2 * time.Minute) // past TTL
	cs.FetchCandles(context.Background(), 2)

	if src.calls != 2 {
		t.Errorf("expected refetch after expiry, got %d calls", src.calls)
	}
}

func TestCacheBoundEviction(t *testing.T) {
	cache := NewCache(time.Hour, 2)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Put("a", someCandles(1))
	now = now.Add(time.Second)
	cache.Put("b", someCandles(1))
	now = now.Add(time.Second)
	cache.Put("c", someCandles(1)) // evicts "a"

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if cache.Get("a") != nil {
		t.Error("oldest entry should have been evicted")
	}
	if cache.Get("b") == nil || cache.Get("c") == nil {
		t.Error("newer entries should survive")
	}
}

func TestCacheMissOnError(t *testing.T) {
	src := &stubSource{name: "stub", err: errors.New("down")}
	cs := NewCachedSource(src, NewCache(time.Minute, 10))

	if _, err := cs.FetchCandles(context.Background(), 2); err == nil {
		t.Fatal("expected upstream error")
	}
	// Errors must not be cached
	src.err = nil
	src.candles = someCandles(1)
	got, err := cs.FetchCandles(context.Background(), 2)
	if err != nil || len(got) != 1 {
		t.Errorf("expected recovery after upstream heals, got %v %d", err, len(got))
	}
}

func TestChainUsesPrimaryFirst(t *testing.T) {
	primary := &stubSource{name: "primary", candles: someCandles(2)}
	backup := &stubSource{name: "backup", candles: someCandles(5)}
	chain := NewChain(primary, backup)

	got, err := chain.FetchCandles(context.Background(), 2)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected primary's 2 candles, got %d", len(got))
	}
	if backup.calls != 0 {
		t.Error("backup should not have been called")
	}
}

func TestChainFailsOver(t *testing.T) {
	primary := &stubSource{name: "primary", err: errors.New("down")}
	backup := &stubSource{name: "backup", candles: someCandles(4)}
	chain := NewChain(primary, backup)

	got, err := chain.FetchCandles(context.Background(), 4)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("expected backup's 4 candles, got %d", len(got))
	}
}

func TestChainAllFail(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	chain := NewChain(&stubSource{name: "a", err: errA}, &stubSource{name: "b", err: errB})

	_, err := chain.FetchCandles(context.Background(), 1)
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("error should carry both causes: %v", err)
	}
}

func TestBuilderRollsBuckets(t *testing.T) {
	b := NewBuilder(model.TF1m, 100)
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	ticks := []model.Tick{
		{Price: 100, Size: 1, TS: t0.Add(5 * time.Second)},
		{Price: 103, Size: 2, TS: t0.Add(20 * time.Second)},
		{Price: 99, Size: 1, TS: t0.Add(40 * time.Second)},
		{Price: 101, Size: 1, TS: t0.Add(55 * time.Second)},
	}
	for _, tk := range ticks {
		if _, done := b.AddTick(tk); done {
			t.Fatal("no candle should complete within one bucket")
		}
	}

	// First tick of the next minute completes the candle.
	completed, done := b.AddTick(model.Tick{Price: 102, Size: 1, TS: t0.Add(65 * time.Second)})
	if !done {
		t.Fatal("expected bucket roll")
	}
	if !completed.OpenTime.Equal(t0) {
		t.Errorf("open time mismatch: %v", completed.OpenTime)
	}
	if completed.Open != 100 || completed.High != 103 || completed.Low != 99 || completed.Close != 101 {
		t.Errorf("OHLC mismatch: %+v", completed)
	}
	if completed.Volume != 5 {
		t.Errorf("expected volume 5, got %.1f", completed.Volume)
	}

	got := b.Completed(10)
	if len(got) != 1 || !got[0].OpenTime.Equal(t0) {
		t.Errorf("completed window mismatch: %+v", got)
	}
}

func TestBuilderIgnoresBadTicks(t *testing.T) {
	b := NewBuilder(model.TF1m, 10)
	if _, done := b.AddTick(model.Tick{Price: 0, TS: time.Now()}); done {
		t.Error("zero-price tick must be ignored")
	}
	if len(b.Completed(0)) != 0 {
		t.Error("no candles expected")
	}
}

func TestBuilderWindowBound(t *testing.T) {
	b := NewBuilder(model.TF1m, 3)
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		b.AddTick(model.Tick{Price: 100 + float64(i), Size: 1, TS: t0.Add(time.Duration(i) * time.Minute)})
	}

	got := b.Completed(0)
	if len(got) != 3 {
		t.Fatalf("expected window of 3, got %d", len(got))
	}
	// Candles 6,7,8 completed most recently (9 is still forming)
	if got[0].Open != 106 || got[2].Open != 108 {
		t.Errorf("window contents mismatch: %+v", got)
	}
}

// memSink collects persisted candles.
type memSink struct {
	saved []model.Candle
	err   error
	calls int
}

func (s *memSink) SaveCandles(candles []model.Candle) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, candles...)
	return nil
}

func TestRecordedSourcePersistsOnlyNewCandles(t *testing.T) {
	src := &stubSource{name: "stub", candles: someCandles(3)}
	sink := &memSink{}
	rs := NewRecordedSource(src, sink)

	if _, err := rs.FetchCandles(context.Background(), 3); err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(sink.saved) != 3 {
		t.Fatalf("expected 3 persisted candles, got %d", len(sink.saved))
	}

	// Overlapping window: 2 old candles plus 1 new one.
	src.candles = someCandles(4)[1:]
	if _, err := rs.FetchCandles(context.Background(), 3); err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(sink.saved) != 4 {
		t.Fatalf("expected 4 persisted candles after overlap, got %d", len(sink.saved))
	}
	last := sink.saved[len(sink.saved)-1]
	if last.OpenTime != someCandles(4)[3].OpenTime {
		t.Errorf("wrong candle persisted last: %v", last.OpenTime)
	}
}

func TestRecordedSourceSinkFailureDoesNotBlockFetch(t *testing.T) {
	src := &stubSource{name: "stub", candles: someCandles(2)}
	sink := &memSink{err: errors.New("disk full")}
	rs := NewRecordedSource(src, sink)

	got, err := rs.FetchCandles(context.Background(), 2)
	if err != nil {
		t.Fatalf("fetch should succeed despite sink error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}

	// The failed batch is retried on the next fetch.
	sink.err = nil
	if _, err := rs.FetchCandles(context.Background(), 2); err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(sink.saved) != 2 {
		t.Errorf("expected failed batch to be retried, got %d saved", len(sink.saved))
	}
}

func TestWSFeedReconnectHookFires(t *testing.T) {
	// Nothing listens on port 1, so every dial fails and triggers the hook.
	f := NewWSFeed(WSConfig{URL: "ws://127.0.0.1:1/ws", Market: "SOL-USDC", TF: model.TF1m})
	hit := make(chan struct{}, 1)
	f.OnReconnect = func() {
		select {
		case hit <- struct{}{}:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case <-hit:
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect hook never fired")
	}
}
