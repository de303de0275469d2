package trade

import (
	"math/big"

	"perp-order-engine/internal/fees"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/position"
	"perp-order-engine/internal/swap"
	"perp-order-engine/internal/usdmath"
)

// GetIncreasePositionAmounts derives every parameter of an increase
// order from the selected strategy. Absent or zero driving inputs yield
// a fully-zeroed record so callers can render an empty form; nil
// references are a contract violation and return ErrInvalidInput.
func (e *Engine) GetIncreasePositionAmounts(in IncreaseInput) (*IncreasePositionAmounts, error) {
	if in.Market == nil || in.IndexToken == nil || in.InitialCollateralToken == nil || in.CollateralToken == nil {
		return nil, ErrInvalidInput
	}
	if in.LeverageBps != nil && in.LeverageBps.Sign() < 0 {
		return nil, ErrInvalidInput
	}

	values := newIncreasePositionAmounts()
	isLimit := usdmath.IsPositive(in.TriggerPrice)

	if isLimit {
		values.TriggerPrice.Set(in.TriggerPrice)
		values.TriggerThreshold = triggerThresholdForIncrease(in.IsLong)

		values.IndexPrice.Set(in.TriggerPrice)
		if market.EquivalentTokens(in.IndexToken, in.InitialCollateralToken) {
			values.InitialCollateralPrice.Set(in.TriggerPrice)
		} else {
			values.InitialCollateralPrice.Set(in.InitialCollateralToken.Prices.Min)
		}
		if market.EquivalentTokens(in.IndexToken, in.CollateralToken) {
			values.CollateralPrice.Set(in.TriggerPrice)
		} else {
			values.CollateralPrice.Set(in.CollateralToken.Prices.Min)
		}
	} else {
		values.IndexPrice = market.MarkPrice(in.IndexToken.Prices, true, in.IsLong)
		values.InitialCollateralPrice.Set(in.InitialCollateralToken.Prices.Min)
		values.CollateralPrice.Set(in.CollateralToken.Prices.Min)
	}

	if in.Position != nil {
		values.BorrowingFeeUsd.Set(nz(in.Position.PendingBorrowingFeesUsd))
		values.FundingFeeUsd.Set(nz(in.Position.PendingFundingFeesUsd))
	}

	swapInput := swap.ValuationInput{
		Params:   e.params,
		Markets:  in.Markets,
		TokenIn:  in.InitialCollateralToken,
		TokenOut: in.CollateralToken,
		Impact:   e.impact,
		Find:     in.Find,
	}

	switch {
	case in.Strategy == StrategyLeverageByCollateral &&
		usdmath.IsPositive(in.LeverageBps) && usdmath.IsPositive(in.InitialCollateralAmount):

		values.EstimatedLeverageBps.Set(in.LeverageBps)
		values.InitialCollateralAmount.Set(in.InitialCollateralAmount)
		values.InitialCollateralUsd = nz(usdmath.ConvertToUsd(
			in.InitialCollateralAmount, in.InitialCollateralToken.Decimals, values.InitialCollateralPrice))

		swapAmounts := swap.AmountsByFromValue(swapInput, in.InitialCollateralAmount)
		values.SwapPathStats = swapAmounts.PathStats
		e.trackRoute(swapAmounts.PathStats)

		baseCollateralUsd := nz(usdmath.ConvertToUsd(
			swapAmounts.AmountOut, in.CollateralToken.Decimals, values.CollateralPrice))

		// Fee depends on size and size depends on post-fee collateral:
		// size a provisional order first, then resize once net of its
		// fee. Exactly two passes.
		baseSizeDeltaUsd := usdmath.MulDiv(baseCollateralUsd, in.LeverageBps, e.params.BasisPointsDivisor)
		baseFee := fees.PositionFee(e.params, in.Market, baseSizeDeltaUsd, in.Referral)

		netCollateralUsd := new(big.Int).Sub(baseCollateralUsd, baseFee.PositionFeeUsd)
		values.SizeDeltaUsd = usdmath.MulDiv(netCollateralUsd, in.LeverageBps, e.params.BasisPointsDivisor)
		values.IndexTokenAmount = nz(usdmath.ConvertToTokenAmount(
			values.SizeDeltaUsd, in.IndexToken.Decimals, values.IndexPrice))

		feeInfo := fees.PositionFee(e.params, in.Market, values.SizeDeltaUsd, in.Referral)
		values.PositionFeeUsd = feeInfo.PositionFeeUsd
		values.FeeDiscountUsd = feeInfo.DiscountUsd

		values.CollateralDeltaUsd = new(big.Int).Sub(baseCollateralUsd, values.PositionFeeUsd)
		values.CollateralDeltaUsd.Sub(values.CollateralDeltaUsd, values.BorrowingFeeUsd)
		values.CollateralDeltaUsd.Sub(values.CollateralDeltaUsd, values.FundingFeeUsd)
		values.CollateralDeltaAmount = nz(usdmath.ConvertToTokenAmount(
			values.CollateralDeltaUsd, in.CollateralToken.Decimals, values.CollateralPrice))

	case in.Strategy == StrategyLeverageBySize &&
		usdmath.IsPositive(in.LeverageBps) && usdmath.IsPositive(in.IndexTokenAmount):

		values.EstimatedLeverageBps.Set(in.LeverageBps)
		values.IndexTokenAmount.Set(in.IndexTokenAmount)
		values.SizeDeltaUsd = nz(usdmath.ConvertToUsd(
			in.IndexTokenAmount, in.IndexToken.Decimals, values.IndexPrice))

		feeInfo := fees.PositionFee(e.params, in.Market, values.SizeDeltaUsd, in.Referral)
		values.PositionFeeUsd = feeInfo.PositionFeeUsd
		values.FeeDiscountUsd = feeInfo.DiscountUsd

		values.CollateralDeltaUsd = usdmath.MulDiv(values.SizeDeltaUsd, e.params.BasisPointsDivisor, in.LeverageBps)
		values.CollateralDeltaAmount = nz(usdmath.ConvertToTokenAmount(
			values.CollateralDeltaUsd, in.CollateralToken.Decimals, values.CollateralPrice))

		// The swap must deliver the collateral plus every fee paid on
		// top of it.
		baseCollateralUsd := new(big.Int).Add(values.CollateralDeltaUsd, values.PositionFeeUsd)
		baseCollateralUsd.Add(baseCollateralUsd, values.BorrowingFeeUsd)
		baseCollateralUsd.Add(baseCollateralUsd, values.FundingFeeUsd)

		baseCollateralAmount := nz(usdmath.ConvertToTokenAmount(
			baseCollateralUsd, in.CollateralToken.Decimals, values.CollateralPrice))

		swapAmounts := swap.AmountsByToValue(swapInput, baseCollateralAmount)
		values.SwapPathStats = swapAmounts.PathStats
		e.trackRoute(swapAmounts.PathStats)

		values.InitialCollateralAmount.Set(swapAmounts.AmountIn)
		values.InitialCollateralUsd = nz(usdmath.ConvertToUsd(
			values.InitialCollateralAmount, in.InitialCollateralToken.Decimals, values.InitialCollateralPrice))

	case in.Strategy == StrategyIndependent:
		if usdmath.IsPositive(in.IndexTokenAmount) {
			values.IndexTokenAmount.Set(in.IndexTokenAmount)
			values.SizeDeltaUsd = nz(usdmath.ConvertToUsd(
				in.IndexTokenAmount, in.IndexToken.Decimals, values.IndexPrice))

			feeInfo := fees.PositionFee(e.params, in.Market, values.SizeDeltaUsd, in.Referral)
			values.PositionFeeUsd = feeInfo.PositionFeeUsd
			values.FeeDiscountUsd = feeInfo.DiscountUsd
		}

		if usdmath.IsPositive(in.InitialCollateralAmount) {
			values.InitialCollateralAmount.Set(in.InitialCollateralAmount)
			values.InitialCollateralUsd = nz(usdmath.ConvertToUsd(
				in.InitialCollateralAmount, in.InitialCollateralToken.Decimals, values.InitialCollateralPrice))

			swapAmounts := swap.AmountsByFromValue(swapInput, in.InitialCollateralAmount)
			values.SwapPathStats = swapAmounts.PathStats
			e.trackRoute(swapAmounts.PathStats)

			baseCollateralUsd := nz(usdmath.ConvertToUsd(
				swapAmounts.AmountOut, in.CollateralToken.Decimals, values.CollateralPrice))

			values.CollateralDeltaUsd = new(big.Int).Sub(baseCollateralUsd, values.PositionFeeUsd)
			values.CollateralDeltaUsd.Sub(values.CollateralDeltaUsd, values.BorrowingFeeUsd)
			values.CollateralDeltaUsd.Sub(values.CollateralDeltaUsd, values.FundingFeeUsd)
			values.CollateralDeltaAmount = nz(usdmath.ConvertToTokenAmount(
				values.CollateralDeltaUsd, in.CollateralToken.Decimals, values.CollateralPrice))
		}

		if leverage, ok := position.Leverage(e.params, position.LeverageInput{
			SizeInUsd:     values.SizeDeltaUsd,
			CollateralUsd: values.CollateralDeltaUsd,
		}); ok {
			values.EstimatedLeverageBps = leverage
		}
	}

	var maxNegativeImpactBps *big.Int
	if isLimit {
		maxNegativeImpactBps = in.AcceptablePriceImpactBps
	}
	acceptable := e.acceptablePriceInfo(acceptablePriceParams{
		market:               in.Market,
		isIncrease:           true,
		isLong:               in.IsLong,
		indexPrice:           values.IndexPrice,
		sizeDeltaUsd:         values.SizeDeltaUsd,
		maxNegativeImpactBps: maxNegativeImpactBps,
	})
	values.AcceptablePrice = acceptable.AcceptablePrice
	values.AcceptablePriceDeltaBps = acceptable.AcceptablePriceDeltaBps
	values.PositionPriceImpactDeltaUsd = acceptable.PriceImpactDeltaUsd

	values.SizeDeltaInTokens = nz(usdmath.ConvertToTokenAmount(
		values.SizeDeltaUsd, in.IndexToken.Decimals, values.AcceptablePrice))

	e.metrics.IncreaseQuotes.Inc()
	return values, nil
}

func (e *Engine) trackRoute(stats *swap.SwapPathStats) {
	if stats == nil {
		e.metrics.SwapRoutesEmpty.Inc()
	}
}

type NextIncreaseInput struct {
	Market          *market.MarketInfo
	CollateralToken *market.TokenData
	IsLong          bool

	SizeDeltaUsd          *big.Int
	SizeDeltaInTokens     *big.Int
	CollateralDeltaUsd    *big.Int
	CollateralDeltaAmount *big.Int
	IndexPrice            *big.Int

	ShowPnlInLeverage bool

	Position *position.Info
	Referral *fees.UserReferralInfo
}

// NextPositionValuesForIncrease projects the position after the
// increase executes. Fees already deducted by the order are excluded
// from the projection.
func (e *Engine) NextPositionValuesForIncrease(in NextIncreaseInput) (NextPositionValues, error) {
	if in.Market == nil || in.Market.IndexToken == nil || in.CollateralToken == nil {
		return NextPositionValues{}, ErrInvalidInput
	}

	next := NextPositionValues{
		SizeUsd:          new(big.Int).Set(nz(in.SizeDeltaUsd)),
		SizeInTokens:     new(big.Int).Set(nz(in.SizeDeltaInTokens)),
		CollateralUsd:    new(big.Int).Set(nz(in.CollateralDeltaUsd)),
		CollateralAmount: new(big.Int).Set(nz(in.CollateralDeltaAmount)),
	}
	var pnl *big.Int
	if in.Position != nil {
		next.SizeUsd.Add(next.SizeUsd, nz(in.Position.SizeInUsd))
		next.SizeInTokens.Add(next.SizeInTokens, nz(in.Position.SizeInTokens))
		next.CollateralUsd.Add(next.CollateralUsd, nz(in.Position.CollateralUsd))
		next.CollateralAmount.Add(next.CollateralAmount, nz(in.Position.CollateralAmount))
		if in.ShowPnlInLeverage {
			pnl = in.Position.Pnl
		}
	}

	entryPrice, ok := position.EntryPrice(next.SizeUsd, next.SizeInTokens, in.Market.IndexToken.Decimals)
	if !ok {
		entryPrice = new(big.Int).Set(nz(in.IndexPrice))
	}
	next.EntryPrice = entryPrice

	if leverage, ok := position.Leverage(e.params, position.LeverageInput{
		SizeInUsd:     next.SizeUsd,
		CollateralUsd: next.CollateralUsd,
		Pnl:           pnl,
	}); ok {
		next.LeverageBps = leverage
	}

	if liqPrice, ok := position.LiquidationPrice(e.params, position.LiqPriceInput{
		Market:           in.Market,
		CollateralToken:  in.CollateralToken,
		SizeInUsd:        next.SizeUsd,
		SizeInTokens:     next.SizeInTokens,
		CollateralUsd:    next.CollateralUsd,
		CollateralAmount: next.CollateralAmount,
		IsLong:           in.IsLong,
		Referral:         in.Referral,
	}); ok {
		next.LiquidationPrice = liqPrice
	}

	return next, nil
}
