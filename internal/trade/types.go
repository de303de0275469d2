package trade

import (
	"errors"
	"math/big"

	"perp-order-engine/internal/fees"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/position"
	"perp-order-engine/internal/swap"
)

var ErrInvalidInput = errors.New("invalid trade input")

// Strategy selects how an increase order couples size and collateral.
// Exactly one is active per call.
type Strategy string

const (
	// StrategyLeverageByCollateral fixes collateral and target leverage;
	// size is derived.
	StrategyLeverageByCollateral Strategy = "leverageByCollateral"
	// StrategyLeverageBySize fixes desired index exposure and leverage;
	// required collateral is derived.
	StrategyLeverageBySize Strategy = "leverageBySize"
	// StrategyIndependent takes both inputs as given; leverage is
	// display-only.
	StrategyIndependent Strategy = "independent"
)

// TriggerThreshold marks which side of the trigger price executes the
// order.
type TriggerThreshold string

const (
	TriggerBelow TriggerThreshold = "<"
	TriggerAbove TriggerThreshold = ">"
)

type IncreaseInput struct {
	Market                 *market.MarketInfo
	Markets                market.MarketsInfoData
	IndexToken             *market.TokenData
	InitialCollateralToken *market.TokenData
	CollateralToken        *market.TokenData
	IsLong                 bool

	Strategy                Strategy
	InitialCollateralAmount *big.Int
	IndexTokenAmount        *big.Int
	LeverageBps             *big.Int
	TriggerPrice            *big.Int

	// AcceptablePriceImpactBps caps the negative impact priced into the
	// acceptable price of a limit order.
	AcceptablePriceImpactBps *big.Int

	Position *position.Info
	Referral *fees.UserReferralInfo
	Find     swap.FindSwapPath
}

// IncreasePositionAmounts is the full increase quote. Every field is
// initialized to a defined zero before any branch writes it; downstream
// code reads all of them unconditionally.
type IncreasePositionAmounts struct {
	InitialCollateralAmount *big.Int
	InitialCollateralUsd    *big.Int

	CollateralDeltaAmount *big.Int
	CollateralDeltaUsd    *big.Int

	SwapPathStats *swap.SwapPathStats

	IndexTokenAmount *big.Int

	SizeDeltaUsd      *big.Int
	SizeDeltaInTokens *big.Int

	EstimatedLeverageBps *big.Int

	IndexPrice             *big.Int
	InitialCollateralPrice *big.Int
	CollateralPrice        *big.Int

	TriggerPrice     *big.Int
	TriggerThreshold TriggerThreshold

	AcceptablePrice         *big.Int
	AcceptablePriceDeltaBps *big.Int

	PositionFeeUsd              *big.Int
	FeeDiscountUsd              *big.Int
	BorrowingFeeUsd             *big.Int
	FundingFeeUsd               *big.Int
	PositionPriceImpactDeltaUsd *big.Int
}

func newIncreasePositionAmounts() *IncreasePositionAmounts {
	return &IncreasePositionAmounts{
		InitialCollateralAmount:     new(big.Int),
		InitialCollateralUsd:        new(big.Int),
		CollateralDeltaAmount:       new(big.Int),
		CollateralDeltaUsd:          new(big.Int),
		IndexTokenAmount:            new(big.Int),
		SizeDeltaUsd:                new(big.Int),
		SizeDeltaInTokens:           new(big.Int),
		EstimatedLeverageBps:        new(big.Int),
		IndexPrice:                  new(big.Int),
		InitialCollateralPrice:      new(big.Int),
		CollateralPrice:             new(big.Int),
		TriggerPrice:                new(big.Int),
		AcceptablePrice:             new(big.Int),
		AcceptablePriceDeltaBps:     new(big.Int),
		PositionFeeUsd:              new(big.Int),
		FeeDiscountUsd:              new(big.Int),
		BorrowingFeeUsd:             new(big.Int),
		FundingFeeUsd:               new(big.Int),
		PositionPriceImpactDeltaUsd: new(big.Int),
	}
}

type DecreaseInput struct {
	Market          *market.MarketInfo
	CollateralToken *market.TokenData
	IsLong          bool

	CloseSizeUsd *big.Int
	KeepLeverage bool

	TriggerPrice             *big.Int
	AcceptablePriceImpactBps *big.Int

	Position *position.Info
	Referral *fees.UserReferralInfo
}

// DecreasePositionAmounts is the full decrease quote, zero-initialized
// the same way as the increase record.
type DecreasePositionAmounts struct {
	SizeDeltaUsd      *big.Int
	SizeDeltaInTokens *big.Int

	CollateralDeltaUsd    *big.Int
	CollateralDeltaAmount *big.Int

	EstimatedPnl *big.Int
	RealizedPnl  *big.Int

	PayoutUsd          *big.Int
	ReceiveTokenAmount *big.Int

	IndexPrice      *big.Int
	CollateralPrice *big.Int

	TriggerPrice     *big.Int
	TriggerThreshold TriggerThreshold

	AcceptablePrice         *big.Int
	AcceptablePriceDeltaBps *big.Int

	PositionFeeUsd              *big.Int
	FeeDiscountUsd              *big.Int
	BorrowingFeeUsd             *big.Int
	FundingFeeUsd               *big.Int
	PositionPriceImpactDeltaUsd *big.Int

	IsFullClose bool
}

func newDecreasePositionAmounts() *DecreasePositionAmounts {
	return &DecreasePositionAmounts{
		SizeDeltaUsd:                new(big.Int),
		SizeDeltaInTokens:           new(big.Int),
		CollateralDeltaUsd:          new(big.Int),
		CollateralDeltaAmount:       new(big.Int),
		EstimatedPnl:                new(big.Int),
		RealizedPnl:                 new(big.Int),
		PayoutUsd:                   new(big.Int),
		ReceiveTokenAmount:          new(big.Int),
		IndexPrice:                  new(big.Int),
		CollateralPrice:             new(big.Int),
		TriggerPrice:                new(big.Int),
		AcceptablePrice:             new(big.Int),
		AcceptablePriceDeltaBps:     new(big.Int),
		PositionFeeUsd:              new(big.Int),
		FeeDiscountUsd:              new(big.Int),
		BorrowingFeeUsd:             new(big.Int),
		FundingFeeUsd:               new(big.Int),
		PositionPriceImpactDeltaUsd: new(big.Int),
	}
}

// NextPositionValues projects a position after applying a delta. Nil
// pointer fields mean "undefined".
type NextPositionValues struct {
	SizeUsd          *big.Int
	SizeInTokens     *big.Int
	CollateralUsd    *big.Int
	CollateralAmount *big.Int
	EntryPrice       *big.Int
	LeverageBps      *big.Int
	LiquidationPrice *big.Int
}

type AcceptablePriceInfo struct {
	AcceptablePrice         *big.Int
	AcceptablePriceDeltaBps *big.Int
	PriceImpactDeltaUsd     *big.Int
}

func nz(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
