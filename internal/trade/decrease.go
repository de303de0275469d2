package trade

import (
	"math/big"

	"perp-order-engine/internal/fees"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/position"
	"perp-order-engine/internal/usdmath"
)

// GetDecreasePositionAmounts derives every parameter of a decrease
// order. A zero close size or an absent position yields a fully-zeroed
// record.
func (e *Engine) GetDecreasePositionAmounts(in DecreaseInput) (*DecreasePositionAmounts, error) {
	if in.Market == nil || in.Market.IndexToken == nil || in.CollateralToken == nil {
		return nil, ErrInvalidInput
	}

	values := newDecreasePositionAmounts()
	if in.Position == nil || !usdmath.IsPositive(in.CloseSizeUsd) || !usdmath.IsPositive(in.Position.SizeInUsd) {
		return values, nil
	}

	indexToken := in.Market.IndexToken
	isTrigger := usdmath.IsPositive(in.TriggerPrice)

	if isTrigger {
		values.TriggerPrice.Set(in.TriggerPrice)
		values.TriggerThreshold = triggerThresholdForDecrease(in.IsLong)

		values.IndexPrice.Set(in.TriggerPrice)
		if market.EquivalentTokens(indexToken, in.CollateralToken) {
			values.CollateralPrice.Set(in.TriggerPrice)
		} else {
			values.CollateralPrice.Set(in.CollateralToken.Prices.Min)
		}
	} else {
		values.IndexPrice = market.MarkPrice(indexToken.Prices, false, in.IsLong)
		values.CollateralPrice.Set(in.CollateralToken.Prices.Min)
	}

	values.SizeDeltaUsd = usdmath.Min(in.CloseSizeUsd, in.Position.SizeInUsd)
	values.IsFullClose = values.SizeDeltaUsd.Cmp(in.Position.SizeInUsd) == 0

	// Tokens leave proportionally to the USD size closed.
	values.SizeDeltaInTokens = usdmath.MulDiv(nz(in.Position.SizeInTokens), values.SizeDeltaUsd, in.Position.SizeInUsd)

	values.EstimatedPnl = position.PnlUsd(
		values.IndexPrice, in.Position.SizeInUsd, in.Position.SizeInTokens, indexToken.Decimals, in.IsLong)
	values.RealizedPnl = usdmath.MulDiv(values.EstimatedPnl, values.SizeDeltaUsd, in.Position.SizeInUsd)

	feeInfo := fees.PositionFee(e.params, in.Market, values.SizeDeltaUsd, in.Referral)
	values.PositionFeeUsd = feeInfo.PositionFeeUsd
	values.FeeDiscountUsd = feeInfo.DiscountUsd
	values.BorrowingFeeUsd.Set(nz(in.Position.PendingBorrowingFeesUsd))
	values.FundingFeeUsd.Set(nz(in.Position.PendingFundingFeesUsd))

	collateralUsd := nz(in.Position.CollateralUsd)
	switch {
	case values.IsFullClose:
		values.CollateralDeltaUsd.Set(collateralUsd)
	case in.KeepLeverage:
		values.CollateralDeltaUsd = usdmath.MulDiv(collateralUsd, values.SizeDeltaUsd, in.Position.SizeInUsd)
	}
	values.CollateralDeltaAmount = nz(usdmath.ConvertToTokenAmount(
		values.CollateralDeltaUsd, in.CollateralToken.Decimals, values.CollateralPrice))

	acceptable := e.acceptablePriceInfo(acceptablePriceParams{
		market:               in.Market,
		isIncrease:           false,
		isLong:               in.IsLong,
		indexPrice:           values.IndexPrice,
		sizeDeltaUsd:         values.SizeDeltaUsd,
		maxNegativeImpactBps: triggerImpactCap(isTrigger, in.AcceptablePriceImpactBps),
	})
	values.AcceptablePrice = acceptable.AcceptablePrice
	values.AcceptablePriceDeltaBps = acceptable.AcceptablePriceDeltaBps
	values.PositionPriceImpactDeltaUsd = acceptable.PriceImpactDeltaUsd

	// What the trader receives: released collateral plus realized PnL,
	// net of every fee, floored at zero.
	payout := new(big.Int).Add(values.CollateralDeltaUsd, values.RealizedPnl)
	payout.Sub(payout, values.PositionFeeUsd)
	payout.Sub(payout, values.BorrowingFeeUsd)
	payout.Sub(payout, values.FundingFeeUsd)
	if payout.Sign() < 0 {
		payout.SetInt64(0)
	}
	values.PayoutUsd = payout
	values.ReceiveTokenAmount = nz(usdmath.ConvertToTokenAmount(
		values.PayoutUsd, in.CollateralToken.Decimals, values.CollateralPrice))

	e.metrics.DecreaseQuotes.Inc()
	return values, nil
}

func triggerImpactCap(isTrigger bool, capBps *big.Int) *big.Int {
	if !isTrigger {
		return nil
	}
	return capBps
}

type NextDecreaseInput struct {
	Market          *market.MarketInfo
	CollateralToken *market.TokenData
	IsLong          bool

	SizeDeltaUsd       *big.Int
	SizeDeltaInTokens  *big.Int
	CollateralDeltaUsd *big.Int
	RealizedPnl        *big.Int

	ShowPnlInLeverage bool

	Position *position.Info
	Referral *fees.UserReferralInfo
}

// NextPositionValuesForDecrease projects the position after the
// decrease executes. A full close projects to an empty position with
// every derived value undefined.
func (e *Engine) NextPositionValuesForDecrease(in NextDecreaseInput) (NextPositionValues, error) {
	if in.Market == nil || in.Market.IndexToken == nil || in.CollateralToken == nil || in.Position == nil {
		return NextPositionValues{}, ErrInvalidInput
	}

	next := NextPositionValues{
		SizeUsd:          new(big.Int).Sub(nz(in.Position.SizeInUsd), nz(in.SizeDeltaUsd)),
		SizeInTokens:     new(big.Int).Sub(nz(in.Position.SizeInTokens), nz(in.SizeDeltaInTokens)),
		CollateralUsd:    new(big.Int).Sub(nz(in.Position.CollateralUsd), nz(in.CollateralDeltaUsd)),
		CollateralAmount: new(big.Int),
	}
	if next.SizeUsd.Sign() < 0 {
		next.SizeUsd.SetInt64(0)
	}
	if next.SizeInTokens.Sign() < 0 {
		next.SizeInTokens.SetInt64(0)
	}
	if next.CollateralUsd.Sign() < 0 {
		next.CollateralUsd.SetInt64(0)
	}
	if amount := usdmath.ConvertToTokenAmount(next.CollateralUsd, in.CollateralToken.Decimals, in.CollateralToken.Prices.Min); amount != nil {
		next.CollateralAmount = amount
	}

	if next.SizeUsd.Sign() == 0 {
		return next, nil
	}

	if entryPrice, ok := position.EntryPrice(next.SizeUsd, next.SizeInTokens, in.Market.IndexToken.Decimals); ok {
		next.EntryPrice = entryPrice
	}

	var pnl *big.Int
	if in.ShowPnlInLeverage && in.Position.Pnl != nil {
		pnl = new(big.Int).Sub(in.Position.Pnl, nz(in.RealizedPnl))
	}
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
