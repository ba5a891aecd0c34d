package execution

import (
	"context"
	"errors"
	"log"

	"spotenginev1/internal/model"
)

// Fallback tries each executor in order until one fills. Sells must not be
// silently dropped, so the combined error carries every venue failure.
type Fallback struct {
	executors []model.Executor
}

var _ model.Executor = (*Fallback)(nil)

// NewFallback builds a failover chain. Order matters: executors[0] is the
// primary venue.
func NewFallback(executors ...model.Executor) *Fallback {
	return &Fallback{executors: executors}
}

func (f *Fallback) Buy(ctx context.Context, sizeBase float64) (*model.BuyResult, error) {
	var errs []error
	for i, ex := range f.executors {
		res, err := ex.Buy(ctx, sizeBase)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i < len(f.executors)-1 {
			log.Printf("[executor] buy failed on venue %d, failing over: %v", i, err)
		}
	}
	return nil, errors.Join(errs...)
}

func (f *Fallback) Sell(ctx context.Context, sizeRaw int64, decimals int) (*model.SellResult, error) {
	var errs []error
	for i, ex := range f.executors {
		res, err := ex.Sell(ctx, sizeRaw, decimals)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		if i < len(f.executors)-1 {
			log.Printf("[executor] sell failed on venue %d, failing over: %v", i, err)
		}
	}
	return nil, errors.Join(errs...)
}
