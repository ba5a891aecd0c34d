package ringbuf

import (
	"sync"
	"testing"
	"time"

	"spotenginev1/internal/model"
)

func TestRingBasicPushPop(t *testing.T) {
	r := New(4)

	t1 := model.Tick{Price: 100, Size: 1}
	t2 := model.Tick{Price: 200, Size: 2}

	if !r.Push(t1) || !r.Push(t2) {
		t.Fatal("push failed on empty ring")
	}
	if r.Len() != 2 {
		t.Errorf("expected len 2, got %d", r.Len())
	}

	got, ok := r.Pop()
	if !ok || got.Price != 100 {
		t.Errorf("expected first tick at 100, got %+v ok=%v", got, ok)
	}
	got, ok = r.Pop()
	if !ok || got.Price != 200 {
		t.Errorf("expected second tick at 200, got %+v ok=%v", got, ok)
	}
	if _, ok := r.Pop(); ok {
		t.Error("pop on empty ring should fail")
	}
}

func TestRingFullDropsAndCounts(t *testing.T) {
	r := New(2)

	r.Push(model.Tick{Price: 1})
	r.Push(model.Tick{Price: 2})
	if r.Push(model.Tick{Price: 3}) {
		t.Error("push on full ring should fail")
	}
	if r.Overflow() != 1 {
		t.Errorf("expected 1 overflow, got %d", r.Overflow())
	}

	// Drain one, push succeeds again
	r.Pop()
	if !r.Push(model.Tick{Price: 3}) {
		t.Error("push after drain should succeed")
	}
}

func TestRingCapacityRounding(t *testing.T) {
	if got := New(5).Cap(); got != 8 {
		t.Errorf("expected cap 8, got %d", got)
	}
	if got := New(1).Cap(); got != 2 {
		t.Errorf("expected min cap 2, got %d", got)
	}
}

func TestRingWraparound(t *testing.T) {
	r := New(4)
	// Push/pop past the buffer length several times
	for i := 0; i < 20; i++ {
		if !r.Push(model.Tick{Price: float64(i)}) {
			t.Fatalf("push %d failed", i)
		}
		got, ok := r.Pop()
		if !ok || got.Price != float64(i) {
			t.Fatalf("pop %d: got %+v ok=%v", i, got, ok)
		}
	}
}

func TestRingConcurrentSPSC(t *testing.T) {
	r := New(1024)
	const n = 100000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.Push(model.Tick{Price: float64(i), TS: time.Now()}) {
				// spin until space
			}
		}
	}()

	go func() {
		defer wg.Done()
		next := 0.0
		for next < n {
			tick, ok := r.Pop()
			if !ok {
				continue
			}
			if tick.Price != next {
				t.Errorf("out of order: expected %.0f got %.0f", next, tick.Price)
				return
			}
			next++
		}
	}()

	wg.Wait()
}
