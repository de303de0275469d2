package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"perp-order-engine/internal/fees"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/usdmath"
)

// AmountsByFromValue values a swap of a fixed input amount: sell the
// input at its bid, walk the resolved route applying pool fee and price
// impact per hop, buy the output at its ask.
func AmountsByFromValue(in ValuationInput, amountIn *big.Int) SwapAmounts {
	out := zeroAmounts()
	if in.TokenIn == nil || in.TokenOut == nil || !usdmath.IsPositive(amountIn) {
		return out
	}

	priceIn := new(big.Int).Set(in.TokenIn.Prices.Min)
	priceOut := new(big.Int).Set(in.TokenOut.Prices.Max)
	usdIn := usdmath.ConvertToUsd(amountIn, in.TokenIn.Decimals, priceIn)

	out.AmountIn = new(big.Int).Set(amountIn)
	out.UsdIn = usdIn
	out.PriceIn = priceIn
	out.PriceOut = priceOut

	if market.EquivalentTokens(in.TokenIn, in.TokenOut) {
		out.PriceOut = new(big.Int).Set(priceIn)
		out.UsdOut = new(big.Int).Set(usdIn)
		out.AmountOut = new(big.Int).Set(amountIn)
		out.PathStats = noopPathStats(in, usdIn, amountIn)
		return out
	}

	stats, ok := valuePath(in, usdIn)
	if !ok {
		return out
	}
	out.UsdOut = new(big.Int).Set(stats.UsdOut)
	out.AmountOut = usdmath.ConvertToTokenAmount(stats.UsdOut, in.TokenOut.Decimals, priceOut)
	stats.AmountOut = new(big.Int).Set(out.AmountOut)
	out.PathStats = stats
	return out
}

// AmountsByToValue solves for the input amount that yields a desired
// output: the route is valued for the target USD and per-hop fees and
// impact are grossed back up, truncating the same way throughout.
func AmountsByToValue(in ValuationInput, amountOut *big.Int) SwapAmounts {
	out := zeroAmounts()
	if in.TokenIn == nil || in.TokenOut == nil || !usdmath.IsPositive(amountOut) {
		return out
	}

	priceIn := new(big.Int).Set(in.TokenIn.Prices.Min)
	priceOut := new(big.Int).Set(in.TokenOut.Prices.Max)
	usdOut := usdmath.ConvertToUsd(amountOut, in.TokenOut.Decimals, priceOut)

	out.AmountOut = new(big.Int).Set(amountOut)
	out.UsdOut = usdOut
	out.PriceIn = priceIn
	out.PriceOut = priceOut

	if market.EquivalentTokens(in.TokenIn, in.TokenOut) {
		out.PriceOut = new(big.Int).Set(priceIn)
		out.UsdIn = new(big.Int).Set(usdOut)
		out.AmountIn = new(big.Int).Set(amountOut)
		out.PathStats = noopPathStats(in, usdOut, amountOut)
		return out
	}

	route := findRoute(in, usdOut)
	if len(route) == 0 {
		return out
	}

	// Gross fees and impact back up hop by hop, walking the route in
	// reverse from the target output value.
	usd := new(big.Int).Set(usdOut)
	for i := len(route) - 1; i >= 0; i-- {
		m, ok := in.Markets.Get(route[i])
		if !ok {
			return zeroAmountsWithPrices(out)
		}
		feeUsd := fees.SwapFee(m, usd)
		usd.Add(usd, feeUsd)
		if !in.IsLimit {
			impactUsd := in.Impact.SwapImpactUsd(m, usd, in.TokenIn, in.TokenOut)
			usd.Sub(usd, impactUsd)
		}
	}

	out.UsdIn = usd
	out.AmountIn = usdmath.ConvertToTokenAmount(usd, in.TokenIn.Decimals, priceIn)

	// Value the forward path at the derived input so the reported stats
	// line up with what the route actually does.
	if stats, ok := valuePath(in, usd); ok {
		stats.AmountOut = usdmath.ConvertToTokenAmount(stats.UsdOut, in.TokenOut.Decimals, priceOut)
		out.PathStats = stats
	}
	return out
}

func zeroAmountsWithPrices(prev SwapAmounts) SwapAmounts {
	out := zeroAmounts()
	out.PriceIn = prev.PriceIn
	out.PriceOut = prev.PriceOut
	return out
}

func findRoute(in ValuationInput, usd *big.Int) []common.Address {
	if in.Find == nil {
		return nil
	}
	return in.Find(usd, in.TokenIn.Address, in.TokenOut.Address)
}

// valuePath walks the resolved route applying fee then impact per hop.
// Returns ok=false when no route exists or a hop references an unknown
// market or a token outside the pool pair.
func valuePath(in ValuationInput, usdIn *big.Int) (*SwapPathStats, bool) {
	route := findRoute(in, usdIn)
	if len(route) == 0 {
		return nil, false
	}

	stats := &SwapPathStats{
		Path:                route,
		Steps:               make([]SwapStep, 0, len(route)),
		TokenInAddress:      in.TokenIn.Address,
		TokenOutAddress:     in.TokenOut.Address,
		TotalSwapFeeUsd:     new(big.Int),
		TotalImpactDeltaUsd: new(big.Int),
		UsdOut:              new(big.Int),
		AmountOut:           new(big.Int),
	}

	current := in.TokenIn
	usd := new(big.Int).Set(usdIn)

	for _, addr := range route {
		m, ok := in.Markets.Get(addr)
		if !ok {
			return nil, false
		}
		next, ok := hopOutToken(m, current)
		if !ok {
			return nil, false
		}

		feeUsd := fees.SwapFee(m, usd)
		impactUsd := new(big.Int)
		if !in.IsLimit {
			impactUsd = in.Impact.SwapImpactUsd(m, usd, current, next)
		}

		usdAfter := new(big.Int).Sub(usd, feeUsd)
		usdAfter.Add(usdAfter, impactUsd)
		if usdAfter.Sign() < 0 {
			usdAfter.SetInt64(0)
		}

		step := SwapStep{
			MarketAddress:       addr,
			TokenInAddress:      current.Address,
			TokenOutAddress:     next.Address,
			AmountIn:            usdmath.ConvertToTokenAmount(usd, current.Decimals, current.Prices.Min),
			AmountOut:           usdmath.ConvertToTokenAmount(usdAfter, next.Decimals, next.Prices.Max),
			UsdIn:               usd,
			UsdOut:              usdAfter,
			SwapFeeUsd:          feeUsd,
			PriceImpactDeltaUsd: impactUsd,
		}
		stats.Steps = append(stats.Steps, step)
		stats.TotalSwapFeeUsd.Add(stats.TotalSwapFeeUsd, feeUsd)
		stats.TotalImpactDeltaUsd.Add(stats.TotalImpactDeltaUsd, impactUsd)

		current = next
		usd = usdAfter
	}

	if !market.EquivalentTokens(current, in.TokenOut) {
		return nil, false
	}
	stats.UsdOut = usd
	return stats, true
}

func hopOutToken(m *market.MarketInfo, tokenIn *market.TokenData) (*market.TokenData, bool) {
	switch {
	case market.EquivalentTokens(tokenIn, m.LongToken):
		return m.ShortToken, true
	case market.EquivalentTokens(tokenIn, m.ShortToken):
		return m.LongToken, true
	default:
		return nil, false
	}
}

func noopPathStats(in ValuationInput, usd, amount *big.Int) *SwapPathStats {
	return &SwapPathStats{
		TokenInAddress:      in.TokenIn.Address,
		TokenOutAddress:     in.TokenOut.Address,
		TotalSwapFeeUsd:     new(big.Int),
		TotalImpactDeltaUsd: new(big.Int),
		UsdOut:              new(big.Int).Set(usd),
		AmountOut:           new(big.Int).Set(amount),
	}
}
