// Package execution turns position decisions into order fills. It carries a
// live executor backed by the spot exchange API, a paper executor that
// simulates fills with configurable slippage, and a failover chain that
// tries venues in order.
package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"spotenginev1/internal/model"
)

// PriceFunc returns the current reference price for fills.
type PriceFunc func() float64

// Fill records one simulated execution for later inspection.
type Fill struct {
	OrderID  string    `json:"order_id"`
	Side     string    `json:"side"`
	Price    float64   `json:"price"`
	Slippage float64   `json:"slippage"`
	FilledAt time.Time `json:"filled_at"`
}

// PaperExecutor simulates order execution without venue calls. Used for
// backtesting and dry runs.
type PaperExecutor struct {
	mu       sync.Mutex
	fills    []Fill
	orderSeq int64

	priceFn     PriceFunc
	slippageBps float64 // e.g. 5 = 0.05%
	decimals    int     // base-token decimals for raw fill amounts
}

var _ model.Executor = (*PaperExecutor)(nil)

// NewPaperExecutor creates a paper executor. priceFn supplies the reference
// price at fill time; slippageBps is applied against the taker.
func NewPaperExecutor(priceFn PriceFunc, slippageBps float64, decimals int) *PaperExecutor {
	return &PaperExecutor{
		fills:       make([]Fill, 0, 1000),
		priceFn:     priceFn,
		slippageBps: slippageBps,
		decimals:    decimals,
	}
}

// Buy simulates a market buy spending sizeBase of quote currency.
func (p *PaperExecutor) Buy(ctx context.Context, sizeBase float64) (*model.BuyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	price := p.priceFn()
	if price <= 0 {
		return nil, fmt.Errorf("paper buy: no reference price")
	}

	slip := price * p.slippageBps / 10000
	fillPrice := price + slip // buy fills higher

	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	p.fills = append(p.fills, Fill{
		OrderID: orderID, Side: "BUY", Price: fillPrice, Slippage: slip, FilledAt: time.Now(),
	})
	p.mu.Unlock()

	filled := model.FloatToRaw(sizeBase/fillPrice, p.decimals)
	log.Printf("[paper] BUY spend=%.4f price=%.6f (slip=%.6f) order=%s", sizeBase, fillPrice, slip, orderID)

	return &model.BuyResult{
		EntryPrice:     fillPrice,
		FilledRaw:      filled,
		FilledDecimals: p.decimals,
		Signature:      orderID,
	}, nil
}

// Sell simulates a market sell of sizeRaw base-token raw units.
func (p *PaperExecutor) Sell(ctx context.Context, sizeRaw int64, decimals int) (*model.SellResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	price := p.priceFn()
	if price <= 0 {
		return nil, fmt.Errorf("paper sell: no reference price")
	}

	slip := price * p.slippageBps / 10000
	fillPrice := price - slip // sell fills lower

	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	p.fills = append(p.fills, Fill{
		OrderID: orderID, Side: "SELL", Price: fillPrice, Slippage: slip, FilledAt: time.Now(),
	})
	p.mu.Unlock()

	proceeds := model.RawToFloat(sizeRaw, decimals) * fillPrice
	log.Printf("[paper] SELL size=%d price=%.6f (slip=%.6f) order=%s", sizeRaw, fillPrice, slip, orderID)

	return &model.SellResult{
		ExitPrice:   fillPrice,
		ProceedsRaw: model.FloatToRaw(proceeds, decimals),
		Signature:   orderID,
	}, nil
}

// Fills returns a snapshot of all simulated fills.
func (p *PaperExecutor) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}
