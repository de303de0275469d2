package position

import (
	"math/big"

	"go.uber.org/zap"

	"perp-order-engine/internal/config"
	"perp-order-engine/internal/fees"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/metrics"
	"perp-order-engine/internal/usdmath"
)

type Aggregator struct {
	params  config.EngineParams
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewAggregator(params config.EngineParams, log *zap.Logger, m *metrics.Metrics) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Aggregator{params: params, log: log, metrics: m}
}

// Aggregate derives the extended record for every raw position. A
// position whose market or tokens are not loaded yet is skipped, not an
// error: partial reference data is normal during live polling. Each key
// is independent of the others.
func (a *Aggregator) Aggregate(
	positions map[Key]*Position,
	marketsData market.MarketsInfoData,
	tokensData market.TokensData,
	referral *fees.UserReferralInfo,
	showPnlInLeverage bool,
) map[Key]*Info {
	out := make(map[Key]*Info, len(positions))

	for key, pos := range positions {
		if pos == nil {
			continue
		}
		marketInfo, ok := marketsData.Get(pos.MarketAddress)
		if !ok || marketInfo.IndexToken == nil {
			a.skip(key, "market")
			continue
		}
		pnlToken := marketInfo.PnlToken(pos.IsLong)
		collateralToken, ok := tokensData.Get(pos.CollateralTokenAddress)
		if !ok || pnlToken == nil {
			a.skip(key, "token")
			continue
		}

		indexToken := marketInfo.IndexToken
		markPrice := market.MarkPrice(indexToken.Prices, false, pos.IsLong)
		collateralMinPrice := collateralToken.Prices.Min

		entryPrice, _ := EntryPrice(pos.SizeInUsd, pos.SizeInTokens, indexToken.Decimals)

		pendingFundingFeesUsd := usdmath.ConvertToUsd(pos.FundingFeeAmount, collateralToken.Decimals, collateralMinPrice)
		if pendingFundingFeesUsd == nil {
			pendingFundingFeesUsd = new(big.Int)
		}
		pendingClaimableFundingFeesUsd := a.claimableFundingUsd(marketInfo, pos)
		totalPendingFeesUsd := PendingFeesUsd(pos.PendingBorrowingFeesUsd, pendingFundingFeesUsd)

		closingFeeUsd := fees.PositionFee(a.params, marketInfo, pos.SizeInUsd, referral).PositionFeeUsd

		collateralUsd := usdmath.ConvertToUsd(pos.CollateralAmount, collateralToken.Decimals, collateralMinPrice)
		if collateralUsd == nil {
			collateralUsd = new(big.Int)
		}
		remainingCollateralUsd := new(big.Int).Sub(collateralUsd, totalPendingFeesUsd)
		remainingCollateralAmount := usdmath.ConvertToTokenAmount(remainingCollateralUsd, collateralToken.Decimals, collateralMinPrice)

		pnl := PnlUsd(markPrice, pos.SizeInUsd, pos.SizeInTokens, indexToken.Decimals, pos.IsLong)
		pnlPercentage := usdmath.BasisPoints(pnl, collateralUsd, a.params.BasisPointsDivisor)

		netValue := NetValue(collateralUsd, pnl, pos.PendingBorrowingFeesUsd, pendingFundingFeesUsd, closingFeeUsd)

		pnlAfterFees := new(big.Int).Sub(pnl, totalPendingFeesUsd)
		pnlAfterFees.Sub(pnlAfterFees, closingFeeUsd)
		pnlAfterFeesPercentage := usdmath.BasisPoints(
			pnlAfterFees,
			new(big.Int).Add(collateralUsd, closingFeeUsd),
			a.params.BasisPointsDivisor,
		)

		leverageIn := LeverageInput{
			SizeInUsd:               pos.SizeInUsd,
			CollateralUsd:           collateralUsd,
			PendingBorrowingFeesUsd: pos.PendingBorrowingFeesUsd,
			PendingFundingFeesUsd:   pendingFundingFeesUsd,
		}
		if showPnlInLeverage {
			leverageIn.Pnl = pnl
		}
		leverage, _ := Leverage(a.params, leverageIn)

		liquidationPrice, _ := LiquidationPrice(a.params, LiqPriceInput{
			Market:                  marketInfo,
			CollateralToken:         collateralToken,
			SizeInUsd:               pos.SizeInUsd,
			SizeInTokens:            pos.SizeInTokens,
			CollateralUsd:           collateralUsd,
			CollateralAmount:        pos.CollateralAmount,
			PendingBorrowingFeesUsd: pos.PendingBorrowingFeesUsd,
			PendingFundingFeesUsd:   pendingFundingFeesUsd,
			IsLong:                  pos.IsLong,
			Referral:                referral,
		})

		out[key] = &Info{
			Position:                       *pos,
			Market:                         marketInfo,
			IndexToken:                     indexToken,
			CollateralToken:                collateralToken,
			PnlToken:                       pnlToken,
			MarkPrice:                      markPrice,
			EntryPrice:                     entryPrice,
			LiquidationPrice:               liquidationPrice,
			Leverage:                       leverage,
			CollateralUsd:                  collateralUsd,
			RemainingCollateralUsd:         remainingCollateralUsd,
			RemainingCollateralAmount:      remainingCollateralAmount,
			Pnl:                            pnl,
			PnlPercentage:                  pnlPercentage,
			PnlAfterFees:                   pnlAfterFees,
			PnlAfterFeesPercentage:         pnlAfterFeesPercentage,
			NetValue:                       netValue,
			ClosingFeeUsd:                  closingFeeUsd,
			PendingFundingFeesUsd:          pendingFundingFeesUsd,
			PendingClaimableFundingFeesUsd: pendingClaimableFundingFeesUsd,
			TotalPendingFeesUsd:            totalPendingFeesUsd,
			HasLowCollateral:               HasLowCollateral(leverage, a.params),
		}
		a.metrics.PositionsAggregated.Inc()
	}

	return out
}

func (a *Aggregator) claimableFundingUsd(m *market.MarketInfo, pos *Position) *big.Int {
	out := new(big.Int)
	if m.LongToken != nil {
		if usd := usdmath.ConvertToUsd(pos.ClaimableLongTokenAmount, m.LongToken.Decimals, m.LongToken.Prices.Min); usd != nil {
			out.Add(out, usd)
		}
	}
	if m.ShortToken != nil {
		if usd := usdmath.ConvertToUsd(pos.ClaimableShortTokenAmount, m.ShortToken.Decimals, m.ShortToken.Prices.Min); usd != nil {
			out.Add(out, usd)
		}
	}
	return out
}

func (a *Aggregator) skip(key Key, missing string) {
	a.metrics.PositionsSkipped.Inc()
	a.log.Debug("position skipped, reference not loaded",
		zap.String("position_key", key.Hex()),
		zap.String("missing", missing),
	)
}
