package execution

import (
	"context"
	"fmt"
	"log"

	"spotenginev1/internal/model"
	"spotenginev1/pkg/spotapi"
)

// LiveExecutor places real market orders through the spot exchange API.
// It also serves as the balance oracle for capital reconciliation.
type LiveExecutor struct {
	client     *spotapi.Client
	market     string
	quoteAsset string
}

var (
	_ model.Executor      = (*LiveExecutor)(nil)
	_ model.BalanceOracle = (*LiveExecutor)(nil)
)

// NewLiveExecutor wraps an authenticated spot API client for one market.
// quoteAsset is the capital currency, e.g. "USDC".
func NewLiveExecutor(client *spotapi.Client, market, quoteAsset string) *LiveExecutor {
	return &LiveExecutor{client: client, market: market, quoteAsset: quoteAsset}
}

// Buy spends sizeBase of quote currency on a market buy.
func (e *LiveExecutor) Buy(ctx context.Context, sizeBase float64) (*model.BuyResult, error) {
	fill, err := e.client.PlaceMarketBuy(ctx, e.market, sizeBase)
	if err != nil {
		return nil, fmt.Errorf("live buy %s: %w", e.market, err)
	}
	log.Printf("[executor] BUY %s spend=%.4f filled=%d@%.6f order=%s",
		e.market, sizeBase, fill.FilledRaw, fill.AvgPrice, fill.OrderID)
	return &model.BuyResult{
		EntryPrice:     fill.AvgPrice,
		FilledRaw:      fill.FilledRaw,
		FilledDecimals: fill.RawDecimals,
		Signature:      fill.TxSignature,
	}, nil
}

// Sell sells sizeRaw base-token raw units at market.
func (e *LiveExecutor) Sell(ctx context.Context, sizeRaw int64, decimals int) (*model.SellResult, error) {
	fill, err := e.client.PlaceMarketSell(ctx, e.market, sizeRaw, decimals)
	if err != nil {
		return nil, fmt.Errorf("live sell %s: %w", e.market, err)
	}
	log.Printf("[executor] SELL %s size=%d price=%.6f order=%s",
		e.market, sizeRaw, fill.AvgPrice, fill.OrderID)
	return &model.SellResult{
		ExitPrice:   fill.AvgPrice,
		ProceedsRaw: fill.ProceedsRaw,
		Signature:   fill.TxSignature,
	}, nil
}

// GetCapital reports the free quote-asset balance.
func (e *LiveExecutor) GetCapital(ctx context.Context) (float64, error) {
	return e.client.GetBalance(ctx, e.quoteAsset)
}
