package position

import (
	"math/big"

	"perp-order-engine/internal/config"
	"perp-order-engine/internal/fees"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/usdmath"
)

// EntryPrice derives the average entry price from accumulated size.
// Undefined (ok=false) when the position holds no tokens.
func EntryPrice(sizeInUsd, sizeInTokens *big.Int, indexDecimals int) (*big.Int, bool) {
	if sizeInUsd == nil || sizeInTokens == nil || sizeInTokens.Sign() <= 0 {
		return nil, false
	}
	out := new(big.Int).Mul(sizeInUsd, usdmath.PowDecimals(indexDecimals))
	out.Quo(out, sizeInTokens)
	return out, true
}

// PnlUsd values the position at markPrice against its entry cost.
func PnlUsd(markPrice, sizeInUsd, sizeInTokens *big.Int, indexDecimals int, isLong bool) *big.Int {
	valueUsd := usdmath.ConvertToUsd(sizeInTokens, indexDecimals, markPrice)
	if valueUsd == nil || sizeInUsd == nil {
		return new(big.Int)
	}
	if isLong {
		return valueUsd.Sub(valueUsd, sizeInUsd)
	}
	return new(big.Int).Sub(sizeInUsd, valueUsd)
}

type LeverageInput struct {
	SizeInUsd     *big.Int
	CollateralUsd *big.Int

	// Pnl folds unrealized profit into effective collateral when set.
	Pnl *big.Int

	PendingBorrowingFeesUsd *big.Int
	PendingFundingFeesUsd   *big.Int
}

// Leverage returns size over effective collateral in basis points.
// Undefined (ok=false) when effective collateral is zero or negative: a
// position with no remaining collateral is insolvent, not unlevered.
func Leverage(params config.EngineParams, in LeverageInput) (*big.Int, bool) {
	if in.SizeInUsd == nil || in.CollateralUsd == nil {
		return nil, false
	}
	remaining := new(big.Int).Set(in.CollateralUsd)
	if in.Pnl != nil {
		remaining.Add(remaining, in.Pnl)
	}
	if in.PendingBorrowingFeesUsd != nil {
		remaining.Sub(remaining, in.PendingBorrowingFeesUsd)
	}
	if in.PendingFundingFeesUsd != nil {
		remaining.Sub(remaining, in.PendingFundingFeesUsd)
	}
	if remaining.Sign() <= 0 {
		return nil, false
	}
	out := new(big.Int).Mul(in.SizeInUsd, params.BasisPointsDivisor)
	out.Quo(out, remaining)
	return out, true
}

func HasLowCollateral(leverageBps *big.Int, params config.EngineParams) bool {
	return leverageBps != nil && leverageBps.Cmp(params.MaxLeverageBps) > 0
}

// PendingFeesUsd totals the accrued borrowing and funding costs.
func PendingFeesUsd(pendingBorrowingFeesUsd, pendingFundingFeesUsd *big.Int) *big.Int {
	out := new(big.Int)
	if pendingBorrowingFeesUsd != nil {
		out.Add(out, pendingBorrowingFeesUsd)
	}
	if pendingFundingFeesUsd != nil {
		out.Add(out, pendingFundingFeesUsd)
	}
	return out
}

// NetValue is what the position returns if closed now: collateral less
// accrued and closing fees, plus unrealized PnL.
func NetValue(collateralUsd, pnl, pendingBorrowingFeesUsd, pendingFundingFeesUsd, closingFeeUsd *big.Int) *big.Int {
	out := new(big.Int).Set(collateralUsd)
	out.Sub(out, PendingFeesUsd(pendingBorrowingFeesUsd, pendingFundingFeesUsd))
	if closingFeeUsd != nil {
		out.Sub(out, closingFeeUsd)
	}
	if pnl != nil {
		out.Add(out, pnl)
	}
	return out
}

type LiqPriceInput struct {
	Market          *market.MarketInfo
	CollateralToken *market.TokenData

	SizeInUsd        *big.Int
	SizeInTokens     *big.Int
	CollateralUsd    *big.Int
	CollateralAmount *big.Int

	PendingBorrowingFeesUsd *big.Int
	PendingFundingFeesUsd   *big.Int

	// PriceImpactDeltaUsd is the projected close impact; zero when the
	// host does not model it here.
	PriceImpactDeltaUsd *big.Int

	IsLong   bool
	Referral *fees.UserReferralInfo
}

// LiquidationPrice solves for the mark price at which remaining
// collateral (after pending fees and the closing fee) hits the market's
// minimum collateral threshold. Undefined for empty positions and for
// non-positive solutions.
func LiquidationPrice(params config.EngineParams, in LiqPriceInput) (*big.Int, bool) {
	if in.Market == nil || in.Market.IndexToken == nil || in.CollateralToken == nil {
		return nil, false
	}
	if !usdmath.IsPositive(in.SizeInUsd) || !usdmath.IsPositive(in.SizeInTokens) {
		return nil, false
	}

	closingFeeUsd := fees.PositionFee(params, in.Market, in.SizeInUsd, in.Referral).PositionFeeUsd
	totalPendingFeesUsd := PendingFeesUsd(in.PendingBorrowingFeesUsd, in.PendingFundingFeesUsd)
	totalFeesUsd := new(big.Int).Add(totalPendingFeesUsd, closingFeeUsd)

	impactUsd := new(big.Int)
	if in.PriceImpactDeltaUsd != nil {
		impactUsd.Set(in.PriceImpactDeltaUsd)
	}

	liquidationCollateralUsd := usdmath.ApplyFactor(in.SizeInUsd, in.Market.MinCollateralFactor)
	if liquidationCollateralUsd == nil || liquidationCollateralUsd.Cmp(params.MinCollateralUsd) < 0 {
		liquidationCollateralUsd = new(big.Int).Set(params.MinCollateralUsd)
	}

	indexDecimals := in.Market.IndexToken.Decimals
	var liqPrice *big.Int

	if market.EquivalentTokens(in.CollateralToken, in.Market.IndexToken) {
		// Collateral moves with the index price: it joins the size in
		// the denominator.
		if in.IsLong {
			denominator := new(big.Int).Add(in.SizeInTokens, in.CollateralAmount)
			if denominator.Sign() == 0 {
				return nil, false
			}
			liqPrice = new(big.Int).Add(in.SizeInUsd, liquidationCollateralUsd)
			liqPrice.Sub(liqPrice, impactUsd)
			liqPrice.Add(liqPrice, totalFeesUsd)
			liqPrice.Quo(liqPrice, denominator)
			liqPrice.Mul(liqPrice, usdmath.PowDecimals(indexDecimals))
		} else {
			denominator := new(big.Int).Sub(in.SizeInTokens, in.CollateralAmount)
			if denominator.Sign() == 0 {
				return nil, false
			}
			liqPrice = new(big.Int).Sub(in.SizeInUsd, liquidationCollateralUsd)
			liqPrice.Add(liqPrice, impactUsd)
			liqPrice.Sub(liqPrice, totalFeesUsd)
			liqPrice.Quo(liqPrice, denominator)
			liqPrice.Mul(liqPrice, usdmath.PowDecimals(indexDecimals))
		}
	} else {
		remainingCollateralUsd := new(big.Int).Set(in.CollateralUsd)
		remainingCollateralUsd.Add(remainingCollateralUsd, impactUsd)
		remainingCollateralUsd.Sub(remainingCollateralUsd, totalFeesUsd)

		if in.IsLong {
			liqPrice = new(big.Int).Sub(liquidationCollateralUsd, remainingCollateralUsd)
			liqPrice.Add(liqPrice, in.SizeInUsd)
			liqPrice.Quo(liqPrice, in.SizeInTokens)
			liqPrice.Mul(liqPrice, usdmath.PowDecimals(indexDecimals))
		} else {
			liqPrice = new(big.Int).Sub(liquidationCollateralUsd, remainingCollateralUsd)
			liqPrice.Sub(liqPrice, in.SizeInUsd)
			liqPrice.Quo(liqPrice, new(big.Int).Neg(in.SizeInTokens))
			liqPrice.Mul(liqPrice, usdmath.PowDecimals(indexDecimals))
		}
	}

	if liqPrice.Sign() <= 0 {
		return nil, false
	}
	return liqPrice, true
}
