package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"perp-order-engine/internal/config"
	"perp-order-engine/internal/market"
)

// FindSwapPath resolves a route for a pair, sized by the USD value being
// moved. It returns an ordered list of market addresses to traverse; nil
// or empty means no viable route. Route selection is the host's concern,
// valuation happens here.
type FindSwapPath func(usd *big.Int, tokenIn, tokenOut common.Address) []common.Address

type SwapStep struct {
	MarketAddress   common.Address
	TokenInAddress  common.Address
	TokenOutAddress common.Address

	AmountIn  *big.Int
	AmountOut *big.Int
	UsdIn     *big.Int
	UsdOut    *big.Int

	SwapFeeUsd          *big.Int
	PriceImpactDeltaUsd *big.Int
}

type SwapPathStats struct {
	Path  []common.Address
	Steps []SwapStep

	TokenInAddress  common.Address
	TokenOutAddress common.Address

	TotalSwapFeeUsd     *big.Int
	TotalImpactDeltaUsd *big.Int
	UsdOut              *big.Int
	AmountOut           *big.Int
}

// SwapAmounts is the valuation result. A zero AmountOut with a nil
// PathStats means no viable route; callers surface that as insufficient
// liquidity, never as an error.
type SwapAmounts struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	UsdIn     *big.Int
	UsdOut    *big.Int
	PriceIn   *big.Int
	PriceOut  *big.Int
	PathStats *SwapPathStats
}

type ValuationInput struct {
	Params   config.EngineParams
	Markets  market.MarketsInfoData
	TokenIn  *market.TokenData
	TokenOut *market.TokenData
	Impact   market.ImpactModel
	Find     FindSwapPath

	// IsLimit prices the route without impact: a limit swap executes
	// only when the pool state satisfies it.
	IsLimit bool
}

func zeroAmounts() SwapAmounts {
	return SwapAmounts{
		AmountIn:  new(big.Int),
		AmountOut: new(big.Int),
		UsdIn:     new(big.Int),
		UsdOut:    new(big.Int),
		PriceIn:   new(big.Int),
		PriceOut:  new(big.Int),
	}
}
