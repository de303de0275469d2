package trade

import (
	"math/big"

	"perp-order-engine/internal/market"
	"perp-order-engine/internal/usdmath"
)

func triggerThresholdForIncrease(isLong bool) TriggerThreshold {
	if isLong {
		return TriggerBelow
	}
	return TriggerAbove
}

func triggerThresholdForDecrease(isLong bool) TriggerThreshold {
	if isLong {
		return TriggerAbove
	}
	return TriggerBelow
}

type acceptablePriceParams struct {
	market               *market.MarketInfo
	isIncrease           bool
	isLong               bool
	indexPrice           *big.Int
	sizeDeltaUsd         *big.Int
	maxNegativeImpactBps *big.Int
}

// acceptablePriceInfo derives the worst execution price the order should
// tolerate: the index price shifted by the size's price impact, with the
// shift flipped toward the side that pays it. When a cap is supplied
// (limit orders) the negative impact priced in is clamped to it.
func (e *Engine) acceptablePriceInfo(p acceptablePriceParams) AcceptablePriceInfo {
	out := AcceptablePriceInfo{
		AcceptablePrice:         new(big.Int),
		AcceptablePriceDeltaBps: new(big.Int),
		PriceImpactDeltaUsd:     new(big.Int),
	}
	if p.indexPrice == nil || p.indexPrice.Sign() <= 0 {
		return out
	}
	out.AcceptablePrice.Set(p.indexPrice)
	if p.sizeDeltaUsd == nil || p.sizeDeltaUsd.Sign() == 0 {
		return out
	}

	impactUsd := e.impact.PositionImpactUsd(p.market, p.sizeDeltaUsd, p.isLong, p.isIncrease)
	impactUsd = nz(impactUsd)
	if p.maxNegativeImpactBps != nil && p.maxNegativeImpactBps.Sign() > 0 {
		mostNegative := usdmath.MulDiv(usdmath.Abs(p.sizeDeltaUsd), p.maxNegativeImpactBps, e.params.BasisPointsDivisor)
		mostNegative.Neg(mostNegative)
		if impactUsd.Cmp(mostNegative) < 0 {
			impactUsd = mostNegative
		}
	}

	deltaBps := usdmath.BasisPoints(impactUsd, usdmath.Abs(p.sizeDeltaUsd), e.params.BasisPointsDivisor)

	priceDelta := usdmath.MulDiv(p.indexPrice, deltaBps, e.params.BasisPointsDivisor)
	// The paying side accepts the price moving against it: increases of
	// longs (and decreases of shorts) flip the shift upward.
	if p.isIncrease == p.isLong {
		priceDelta.Neg(priceDelta)
	}

	out.AcceptablePrice.Add(p.indexPrice, priceDelta)
	out.AcceptablePriceDeltaBps = deltaBps
	out.PriceImpactDeltaUsd = impactUsd
	return out
}
