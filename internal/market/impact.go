package market

import (
	"math/big"

	"perp-order-engine/internal/config"
)

// ImpactModel prices the adverse move a trade causes against a pool.
// Implementations must return a magnitude monotonic in trade size,
// bounded by the configured caps, and negative when the trade costs the
// taker. The exact curve is deployment tuning; hosts inject their own.
type ImpactModel interface {
	PositionImpactUsd(m *MarketInfo, sizeDeltaUsd *big.Int, isLong, isIncrease bool) *big.Int
	SwapImpactUsd(m *MarketInfo, usdIn *big.Int, tokenIn, tokenOut *TokenData) *big.Int
}

// NoImpact zeroes out price impact everywhere.
type NoImpact struct{}

func (NoImpact) PositionImpactUsd(*MarketInfo, *big.Int, bool, bool) *big.Int {
	return new(big.Int)
}

func (NoImpact) SwapImpactUsd(*MarketInfo, *big.Int, *TokenData, *TokenData) *big.Int {
	return new(big.Int)
}

// DepthImpactModel charges impact proportional to trade size relative to
// pool depth: impact_bps = size * factor / depth, clamped to the
// configured cap. Always a cost to the taker.
type DepthImpactModel struct {
	Params config.EngineParams
}

func (d DepthImpactModel) PositionImpactUsd(m *MarketInfo, sizeDeltaUsd *big.Int, isLong, isIncrease bool) *big.Int {
	if m == nil || m.PositionImpactFactor == nil {
		return new(big.Int)
	}
	return d.impactUsd(m, sizeDeltaUsd, m.PositionImpactFactor, d.Params.MaxPositionImpactBps)
}

func (d DepthImpactModel) SwapImpactUsd(m *MarketInfo, usdIn *big.Int, tokenIn, tokenOut *TokenData) *big.Int {
	if m == nil || m.SwapImpactFactor == nil {
		return new(big.Int)
	}
	return d.impactUsd(m, usdIn, m.SwapImpactFactor, d.Params.MaxSwapImpactBps)
}

func (d DepthImpactModel) impactUsd(m *MarketInfo, tradeUsd, factor, capBps *big.Int) *big.Int {
	if tradeUsd == nil || tradeUsd.Sign() == 0 {
		return new(big.Int)
	}
	depth := m.PoolValueUsd()
	if depth.Sign() <= 0 {
		return new(big.Int)
	}
	size := new(big.Int).Abs(tradeUsd)

	// frac is a 1e30-scaled fraction of the trade lost to impact.
	frac := new(big.Int).Mul(size, factor)
	frac.Quo(frac, depth)

	bps := new(big.Int).Mul(frac, d.Params.BasisPointsDivisor)
	bps.Quo(bps, pow10(30))
	if capBps != nil && bps.Cmp(capBps) > 0 {
		bps.Set(capBps)
	}

	impact := new(big.Int).Mul(size, bps)
	impact.Quo(impact, d.Params.BasisPointsDivisor)
	return impact.Neg(impact)
}
