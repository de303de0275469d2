package trade

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"perp-order-engine/internal/usdmath"
)

func TestIncreaseLeverageByCollateral(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	// 1000 USDC at 5x with a 0.05% fee.
	got, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                  f.market,
		Markets:                 f.markets,
		IndexToken:              f.eth,
		InitialCollateralToken:  f.usdc,
		CollateralToken:         f.usdc,
		IsLong:                  true,
		Strategy:                StrategyLeverageByCollateral,
		InitialCollateralAmount: usdmath.ExpandDecimals(1000, 6),
		LeverageBps:             big.NewInt(50000),
		Find:                    f.directRoute,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}

	// Two passes: size the full 5000, net its 2.50 fee from collateral,
	// resize to 997.50 * 5.
	wantSize, _ := new(big.Int).SetString("4987500000000000000000000000000000", 10)
	if got.SizeDeltaUsd.Cmp(wantSize) != 0 {
		t.Fatalf("expected size %s, got %s", wantSize, got.SizeDeltaUsd)
	}
	if got.EstimatedLeverageBps.Int64() != 50000 {
		t.Fatalf("expected 5x, got %s bps", got.EstimatedLeverageBps)
	}
	// Fee charged on the final size.
	wantFee := usdmath.ApplyFactor(wantSize, f.market.PositionFeeFactor)
	if got.PositionFeeUsd.Cmp(wantFee) != 0 {
		t.Fatalf("expected fee %s, got %s", wantFee, got.PositionFeeUsd)
	}
	wantCollateral := new(big.Int).Sub(usdmath.ExpandDecimals(1000, 30), wantFee)
	if got.CollateralDeltaUsd.Cmp(wantCollateral) != 0 {
		t.Fatalf("expected collateral %s, got %s", wantCollateral, got.CollateralDeltaUsd)
	}

	// Opening a long prices at the ask.
	if got.IndexPrice.Cmp(f.eth.Prices.Max) != 0 {
		t.Fatalf("expected index at ask %s, got %s", f.eth.Prices.Max, got.IndexPrice)
	}

	// Realized leverage stays within one bps of the target.
	ratio := new(big.Int).Mul(got.SizeDeltaUsd, f.params.BasisPointsDivisor)
	ratio.Quo(ratio, got.CollateralDeltaUsd)
	diff := new(big.Int).Sub(ratio, big.NewInt(50000))
	if diff.CmpAbs(big.NewInt(1)) > 0 {
		t.Fatalf("leverage drifted more than 1 bps: %s", ratio)
	}
}

func TestIncreaseLeverageBySize(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	// 2.5 ETH of exposure at 5x.
	got, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                 f.market,
		Markets:                f.markets,
		IndexToken:             f.eth,
		InitialCollateralToken: f.usdc,
		CollateralToken:        f.usdc,
		IsLong:                 true,
		Strategy:               StrategyLeverageBySize,
		IndexTokenAmount:       big.NewInt(25e17),
		LeverageBps:            big.NewInt(50000),
		Find:                   f.directRoute,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}

	// 2.5 ETH at the $2001 ask.
	wantSize, _ := new(big.Int).SetString("5002500000000000000000000000000000", 10)
	if got.SizeDeltaUsd.Cmp(wantSize) != 0 {
		t.Fatalf("expected size %s, got %s", wantSize, got.SizeDeltaUsd)
	}
	wantCollateral := usdmath.MulDiv(wantSize, f.params.BasisPointsDivisor, big.NewInt(50000))
	if got.CollateralDeltaUsd.Cmp(wantCollateral) != 0 {
		t.Fatalf("expected collateral %s, got %s", wantCollateral, got.CollateralDeltaUsd)
	}
	// The swap input covers collateral plus the position fee.
	wantFee := usdmath.ApplyFactor(wantSize, f.market.PositionFeeFactor)
	wantInitialUsd := new(big.Int).Add(wantCollateral, wantFee)
	if got.InitialCollateralUsd.Cmp(wantInitialUsd) != 0 {
		t.Fatalf("expected initial collateral %s, got %s", wantInitialUsd, got.InitialCollateralUsd)
	}
}

func TestIncreaseIndependent(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	got, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                  f.market,
		Markets:                 f.markets,
		IndexToken:              f.eth,
		InitialCollateralToken:  f.usdc,
		CollateralToken:         f.usdc,
		IsLong:                  true,
		Strategy:                StrategyIndependent,
		InitialCollateralAmount: usdmath.ExpandDecimals(1000, 6),
		IndexTokenAmount:        big.NewInt(1e18),
		Find:                    f.directRoute,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	wantSize := usdmath.ExpandDecimals(2001, 30)
	if got.SizeDeltaUsd.Cmp(wantSize) != 0 {
		t.Fatalf("expected size %s, got %s", wantSize, got.SizeDeltaUsd)
	}
	// Display leverage derives from the given pair, roughly 2x.
	if got.EstimatedLeverageBps.Sign() <= 0 {
		t.Fatalf("expected derived leverage, got %s", got.EstimatedLeverageBps)
	}
	if got.EstimatedLeverageBps.Int64() < 20000 || got.EstimatedLeverageBps.Int64() > 20100 {
		t.Fatalf("expected roughly 2x, got %s bps", got.EstimatedLeverageBps)
	}
}

func TestIncreaseZeroInputsYieldZeroRecord(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	got, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                 f.market,
		Markets:                f.markets,
		IndexToken:             f.eth,
		InitialCollateralToken: f.usdc,
		CollateralToken:        f.usdc,
		IsLong:                 true,
		Strategy:               StrategyLeverageByCollateral,
		Find:                   f.directRoute,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if got.SizeDeltaUsd.Sign() != 0 || got.CollateralDeltaUsd.Sign() != 0 || got.PositionFeeUsd.Sign() != 0 {
		t.Fatalf("expected zero record for zero inputs")
	}
	// Every field is defined, never nil.
	if got.AcceptablePrice == nil || got.TriggerPrice == nil || got.SizeDeltaInTokens == nil {
		t.Fatalf("zero record must still define every field")
	}
}

func TestIncreaseNilRefsRejected(t *testing.T) {
	f := newFixture(t)
	e := f.engine()
	if _, err := e.GetIncreasePositionAmounts(IncreaseInput{Markets: f.markets}); err == nil {
		t.Fatalf("expected error for nil market")
	}
	if _, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                 f.market,
		IndexToken:             f.eth,
		InitialCollateralToken: f.usdc,
		CollateralToken:        f.usdc,
		LeverageBps:            big.NewInt(-1),
	}); err == nil {
		t.Fatalf("expected error for negative leverage")
	}
}

func TestIncreaseLimitPricing(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	trigger := usdmath.ExpandDecimals(1900, 30)
	got, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                  f.market,
		Markets:                 f.markets,
		IndexToken:              f.eth,
		InitialCollateralToken:  f.usdc,
		CollateralToken:         f.usdc,
		IsLong:                  true,
		Strategy:                StrategyLeverageByCollateral,
		InitialCollateralAmount: usdmath.ExpandDecimals(1000, 6),
		LeverageBps:             big.NewInt(50000),
		TriggerPrice:            trigger,
		Find:                    f.directRoute,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if got.IndexPrice.Cmp(trigger) != 0 {
		t.Fatalf("expected index at trigger %s, got %s", trigger, got.IndexPrice)
	}
	if got.TriggerThreshold != TriggerBelow {
		t.Fatalf("long limit should trigger below, got %q", got.TriggerThreshold)
	}
	// Collateral is not the index token: it keeps its own price.
	if got.CollateralPrice.Cmp(f.usdc.Prices.Min) != 0 {
		t.Fatalf("expected collateral at its own bid, got %s", got.CollateralPrice)
	}
}

func TestIncreaseLimitPricesEquivalentCollateralAtTrigger(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	trigger := usdmath.ExpandDecimals(1900, 30)
	got, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                  f.market,
		Markets:                 f.markets,
		IndexToken:              f.eth,
		InitialCollateralToken:  f.eth,
		CollateralToken:         f.eth,
		IsLong:                  true,
		Strategy:                StrategyLeverageByCollateral,
		InitialCollateralAmount: big.NewInt(1e18),
		LeverageBps:             big.NewInt(50000),
		TriggerPrice:            trigger,
		Find:                    f.directRoute,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if got.CollateralPrice.Cmp(trigger) != 0 {
		t.Fatalf("expected index-equivalent collateral at trigger, got %s", got.CollateralPrice)
	}
}

func TestIncreaseDeterministic(t *testing.T) {
	f := newFixture(t)
	e := f.engine()
	in := IncreaseInput{
		Market:                  f.market,
		Markets:                 f.markets,
		IndexToken:              f.eth,
		InitialCollateralToken:  f.usdc,
		CollateralToken:         f.usdc,
		IsLong:                  true,
		Strategy:                StrategyLeverageByCollateral,
		InitialCollateralAmount: usdmath.ExpandDecimals(1000, 6),
		LeverageBps:             big.NewInt(50000),
		Find:                    f.directRoute,
	}

	first, err := e.GetIncreasePositionAmounts(in)
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	second, err := e.GetIncreasePositionAmounts(in)
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if first.SizeDeltaUsd.Cmp(second.SizeDeltaUsd) != 0 ||
		first.CollateralDeltaUsd.Cmp(second.CollateralDeltaUsd) != 0 ||
		first.AcceptablePrice.Cmp(second.AcceptablePrice) != 0 ||
		first.PositionFeeUsd.Cmp(second.PositionFeeUsd) != 0 {
		t.Fatalf("same input produced different quotes")
	}
	// The quote never mutates its input.
	if in.InitialCollateralAmount.Cmp(usdmath.ExpandDecimals(1000, 6)) != 0 {
		t.Fatalf("input mutated")
	}
}

func TestIncreaseDeductsPendingFees(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	pos := f.openLong(10000, 5, 2000)
	pos.PendingBorrowingFeesUsd = usdmath.ExpandDecimals(10, 30)
	pos.PendingFundingFeesUsd = usdmath.ExpandDecimals(5, 30)

	with, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                  f.market,
		Markets:                 f.markets,
		IndexToken:              f.eth,
		InitialCollateralToken:  f.usdc,
		CollateralToken:         f.usdc,
		IsLong:                  true,
		Strategy:                StrategyLeverageByCollateral,
		InitialCollateralAmount: usdmath.ExpandDecimals(1000, 6),
		LeverageBps:             big.NewInt(50000),
		Position:                pos,
		Find:                    f.directRoute,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if with.BorrowingFeeUsd.Cmp(usdmath.ExpandDecimals(10, 30)) != 0 {
		t.Fatalf("expected borrowing fee carried, got %s", with.BorrowingFeeUsd)
	}
	// Pending fees come out of the deposited collateral.
	wantFee := with.PositionFeeUsd
	wantCollateral := new(big.Int).Sub(usdmath.ExpandDecimals(1000, 30), wantFee)
	wantCollateral.Sub(wantCollateral, usdmath.ExpandDecimals(15, 30))
	if with.CollateralDeltaUsd.Cmp(wantCollateral) != 0 {
		t.Fatalf("expected collateral %s, got %s", wantCollateral, with.CollateralDeltaUsd)
	}
}

func TestNextPositionValuesForIncrease(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	next, err := e.NextPositionValuesForIncrease(NextIncreaseInput{
		Market:                f.market,
		CollateralToken:       f.usdc,
		IsLong:                true,
		SizeDeltaUsd:          usdmath.ExpandDecimals(5000, 30),
		SizeDeltaInTokens:     big.NewInt(25e17),
		CollateralDeltaUsd:    usdmath.ExpandDecimals(1000, 30),
		CollateralDeltaAmount: usdmath.ExpandDecimals(1000, 6),
		IndexPrice:            usdmath.ExpandDecimals(2000, 30),
	})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.SizeUsd.Cmp(usdmath.ExpandDecimals(5000, 30)) != 0 {
		t.Fatalf("expected size 5000, got %s", next.SizeUsd)
	}
	wantEntry := usdmath.ExpandDecimals(2000, 30)
	if next.EntryPrice.Cmp(wantEntry) != 0 {
		t.Fatalf("expected entry %s, got %s", wantEntry, next.EntryPrice)
	}
	if next.LeverageBps == nil || next.LeverageBps.Int64() != 50000 {
		t.Fatalf("expected 5x, got %v", next.LeverageBps)
	}
	if next.LiquidationPrice == nil || next.LiquidationPrice.Cmp(wantEntry) >= 0 {
		t.Fatalf("expected long liquidation below entry, got %v", next.LiquidationPrice)
	}
}

func TestNextPositionValuesForIncreaseMergesExisting(t *testing.T) {
	f := newFixture(t)
	e := f.engine()
	pos := f.openLong(10000, 5, 2000)

	next, err := e.NextPositionValuesForIncrease(NextIncreaseInput{
		Market:                f.market,
		CollateralToken:       f.usdc,
		IsLong:                true,
		SizeDeltaUsd:          usdmath.ExpandDecimals(5000, 30),
		SizeDeltaInTokens:     big.NewInt(25e17),
		CollateralDeltaUsd:    usdmath.ExpandDecimals(1000, 30),
		CollateralDeltaAmount: usdmath.ExpandDecimals(1000, 6),
		IndexPrice:            usdmath.ExpandDecimals(2000, 30),
		Position:              pos,
	})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.SizeUsd.Cmp(usdmath.ExpandDecimals(15000, 30)) != 0 {
		t.Fatalf("expected merged size 15000, got %s", next.SizeUsd)
	}
	if next.CollateralUsd.Cmp(usdmath.ExpandDecimals(3000, 30)) != 0 {
		t.Fatalf("expected merged collateral 3000, got %s", next.CollateralUsd)
	}
	// Inputs survive untouched.
	if pos.SizeInUsd.Cmp(usdmath.ExpandDecimals(10000, 30)) != 0 {
		t.Fatalf("position mutated")
	}
}

func TestIncreaseNoRouteZeroesSwapOutput(t *testing.T) {
	f := newFixture(t)
	e := f.engine()

	got, err := e.GetIncreasePositionAmounts(IncreaseInput{
		Market:                  f.market,
		Markets:                 f.markets,
		IndexToken:              f.eth,
		InitialCollateralToken:  f.usdc,
		CollateralToken:         f.eth,
		IsLong:                  true,
		Strategy:                StrategyLeverageByCollateral,
		InitialCollateralAmount: usdmath.ExpandDecimals(1000, 6),
		LeverageBps:             big.NewInt(50000),
		Find: func(*big.Int, common.Address, common.Address) []common.Address {
			return nil
		},
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if got.SwapPathStats != nil {
		t.Fatalf("expected nil path stats without a route")
	}
	if got.SizeDeltaUsd.Sign() != 0 {
		t.Fatalf("expected zero size without swap output, got %s", got.SizeDeltaUsd)
	}
}
