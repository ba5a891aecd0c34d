package execution

import (
	"context"
	"errors"
	"math"
	"testing"

	"spotenginev1/internal/model"
)

func TestPaperBuyAppliesSlippage(t *testing.T) {
	p := NewPaperExecutor(func() float64 { return 100 }, 10, 9) // 0.10%

	res, err := p.Buy(context.Background(), 250)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if res.EntryPrice != 100.1 {
		t.Errorf("expected fill at 100.1, got %.4f", res.EntryPrice)
	}
	// 250 quote at 100.1 ≈ 2.49750... tokens
	want := model.FloatToRaw(250/100.1, 9)
	if res.FilledRaw != want {
		t.Errorf("expected filled %d, got %d", want, res.FilledRaw)
	}
	if res.FilledDecimals != 9 {
		t.Errorf("expected decimals 9, got %d", res.FilledDecimals)
	}
	if res.Signature == "" {
		t.Error("expected synthetic order id")
	}
}

func TestPaperSellAppliesSlippage(t *testing.T) {
	p := NewPaperExecutor(func() float64 { return 100 }, 10, 9)

	size := model.FloatToRaw(2.5, 9)
	res, err := p.Sell(context.Background(), size, 9)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if res.ExitPrice != 99.9 {
		t.Errorf("expected fill at 99.9, got %.4f", res.ExitPrice)
	}
	proceeds := model.RawToFloat(res.ProceedsRaw, 9)
	if math.Abs(proceeds-2.5*99.9) > 1e-6 {
		t.Errorf("expected proceeds %.4f, got %.4f", 2.5*99.9, proceeds)
	}
}

func TestPaperRejectsWithoutPrice(t *testing.T) {
	p := NewPaperExecutor(func() float64 { return 0 }, 5, 9)
	if _, err := p.Buy(context.Background(), 100); err == nil {
		t.Error("expected error with zero reference price")
	}
	if _, err := p.Sell(context.Background(), 1000, 9); err == nil {
		t.Error("expected error with zero reference price")
	}
}

func TestPaperRecordsFills(t *testing.T) {
	p := NewPaperExecutor(func() float64 { return 50 }, 0, 9)
	p.Buy(context.Background(), 100)
	p.Sell(context.Background(), 1000, 9)

	fills := p.Fills()
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].Side != "BUY" || fills[1].Side != "SELL" {
		t.Errorf("unexpected sides: %s, %s", fills[0].Side, fills[1].Side)
	}
}

// failExec always errors; used to drive the fallback chain.
type failExec struct{ err error }

func (f *failExec) Buy(ctx context.Context, sizeBase float64) (*model.BuyResult, error) {
	return nil, f.err
}
func (f *failExec) Sell(ctx context.Context, sizeRaw int64, decimals int) (*model.SellResult, error) {
	return nil, f.err
}

func TestFallbackUsesPrimaryFirst(t *testing.T) {
	primary := NewPaperExecutor(func() float64 { return 100 }, 0, 9)
	secondary := NewPaperExecutor(func() float64 { return 200 }, 0, 9)
	chain := NewFallback(primary, secondary)

	res, err := chain.Buy(context.Background(), 100)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if res.EntryPrice != 100 {
		t.Errorf("expected primary fill at 100, got %.2f", res.EntryPrice)
	}
	if len(secondary.Fills()) != 0 {
		t.Error("secondary should not have been touched")
	}
}

func TestFallbackFailsOver(t *testing.T) {
	broken := &failExec{err: errors.New("venue down")}
	backup := NewPaperExecutor(func() float64 { return 100 }, 0, 9)
	chain := NewFallback(broken, backup)

	res, err := chain.Sell(context.Background(), model.FloatToRaw(1, 9), 9)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if res.ExitPrice != 100 {
		t.Errorf("expected backup fill at 100, got %.2f", res.ExitPrice)
	}
}

func TestFallbackCombinesErrors(t *testing.T) {
	errA := errors.New("venue a down")
	errB := errors.New("venue b down")
	chain := NewFallback(&failExec{err: errA}, &failExec{err: errB})

	_, err := chain.Buy(context.Background(), 100)
	if err == nil {
		t.Fatal("expected error when all venues fail")
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("combined error should carry both failures: %v", err)
	}
}
