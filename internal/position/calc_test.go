package position

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"perp-order-engine/internal/config"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/usdmath"
)

func engineParams(t *testing.T) config.EngineParams {
	t.Helper()
	params, err := config.Default().Engine.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	return params
}

func TestEntryPrice(t *testing.T) {
	sizeUsd := usdmath.ExpandDecimals(10000, 30)
	sizeTokens := usdmath.ExpandDecimals(5, 18)
	got, ok := EntryPrice(sizeUsd, sizeTokens, 18)
	if !ok {
		t.Fatalf("expected defined entry price")
	}
	want := usdmath.ExpandDecimals(2000, 30)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestEntryPriceUndefined(t *testing.T) {
	if _, ok := EntryPrice(usdmath.ExpandDecimals(1, 30), new(big.Int), 18); ok {
		t.Fatalf("expected undefined entry price for zero tokens")
	}
	if _, ok := EntryPrice(nil, usdmath.ExpandDecimals(1, 18), 18); ok {
		t.Fatalf("expected undefined entry price for nil size")
	}
}

func TestPnlUsdSigns(t *testing.T) {
	sizeUsd := usdmath.ExpandDecimals(10000, 30)
	sizeTokens := usdmath.ExpandDecimals(5, 18)
	mark := usdmath.ExpandDecimals(2200, 30)

	long := PnlUsd(mark, sizeUsd, sizeTokens, 18, true)
	want := usdmath.ExpandDecimals(1000, 30)
	if long.Cmp(want) != 0 {
		t.Fatalf("expected long pnl %s, got %s", want, long)
	}

	short := PnlUsd(mark, sizeUsd, sizeTokens, 18, false)
	if short.Cmp(new(big.Int).Neg(want)) != 0 {
		t.Fatalf("expected short pnl %s, got %s", new(big.Int).Neg(want), short)
	}

	// Below entry the signs flip.
	below := usdmath.ExpandDecimals(1800, 30)
	if PnlUsd(below, sizeUsd, sizeTokens, 18, true).Sign() >= 0 {
		t.Fatalf("expected negative long pnl below entry")
	}
	if PnlUsd(below, sizeUsd, sizeTokens, 18, false).Sign() <= 0 {
		t.Fatalf("expected positive short pnl below entry")
	}
}

func TestLeverage(t *testing.T) {
	params := engineParams(t)
	got, ok := Leverage(params, LeverageInput{
		SizeInUsd:     usdmath.ExpandDecimals(50000, 30),
		CollateralUsd: usdmath.ExpandDecimals(10000, 30),
	})
	if !ok {
		t.Fatalf("expected defined leverage")
	}
	if got.Int64() != 50000 {
		t.Fatalf("expected 50000 bps, got %s", got)
	}
}

func TestLeverageFoldsPnlAndFees(t *testing.T) {
	params := engineParams(t)
	got, ok := Leverage(params, LeverageInput{
		SizeInUsd:               usdmath.ExpandDecimals(50000, 30),
		CollateralUsd:           usdmath.ExpandDecimals(10000, 30),
		Pnl:                     usdmath.ExpandDecimals(5000, 30),
		PendingBorrowingFeesUsd: usdmath.ExpandDecimals(2500, 30),
		PendingFundingFeesUsd:   usdmath.ExpandDecimals(2500, 30),
	})
	if !ok {
		t.Fatalf("expected defined leverage")
	}
	// Effective collateral 10000 + 5000 - 5000 = 10000.
	if got.Int64() != 50000 {
		t.Fatalf("expected 50000 bps, got %s", got)
	}
}

func TestLeverageUndefinedWhenInsolvent(t *testing.T) {
	params := engineParams(t)
	if _, ok := Leverage(params, LeverageInput{
		SizeInUsd:     usdmath.ExpandDecimals(50000, 30),
		CollateralUsd: usdmath.ExpandDecimals(1000, 30),
		Pnl:           usdmath.ExpandDecimals(-1000, 30),
	}); ok {
		t.Fatalf("expected undefined leverage for zero effective collateral")
	}
}

func TestHasLowCollateral(t *testing.T) {
	params := engineParams(t)
	over := new(big.Int).Add(params.MaxLeverageBps, big.NewInt(1))
	if !HasLowCollateral(over, params) {
		t.Fatalf("expected low collateral above max leverage")
	}
	if HasLowCollateral(params.MaxLeverageBps, params) {
		t.Fatalf("leverage at the cap is not low collateral")
	}
	if HasLowCollateral(nil, params) {
		t.Fatalf("undefined leverage is not low collateral")
	}
}

func TestNetValue(t *testing.T) {
	got := NetValue(
		usdmath.ExpandDecimals(1000, 30),
		usdmath.ExpandDecimals(200, 30),
		usdmath.ExpandDecimals(50, 30),
		usdmath.ExpandDecimals(30, 30),
		usdmath.ExpandDecimals(20, 30),
	)
	want := usdmath.ExpandDecimals(1100, 30)
	if got.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPendingFeesUsdNilSafe(t *testing.T) {
	got := PendingFeesUsd(nil, usdmath.ExpandDecimals(5, 30))
	if got.Cmp(usdmath.ExpandDecimals(5, 30)) != 0 {
		t.Fatalf("expected 5, got %s", got)
	}
}

func liqMarket() (*market.MarketInfo, *market.TokenData, *market.TokenData) {
	eth := &market.TokenData{
		Address:  common.HexToAddress("0x01"),
		Symbol:   "ETH",
		Decimals: 18,
		Prices: market.TokenPrices{
			Min: usdmath.ExpandDecimals(2000, 30),
			Max: usdmath.ExpandDecimals(2000, 30),
		},
	}
	usdc := &market.TokenData{
		Address:  common.HexToAddress("0x02"),
		Symbol:   "USDC",
		Decimals: 6,
		Prices: market.TokenPrices{
			Min: usdmath.ExpandDecimals(1, 30),
			Max: usdmath.ExpandDecimals(1, 30),
		},
	}
	m := &market.MarketInfo{
		MarketAddress: common.HexToAddress("0xaa"),
		Name:          "ETH/USD",
		IndexToken:    eth,
		LongToken:     eth,
		ShortToken:    usdc,
	}
	return m, eth, usdc
}

func TestLiquidationPriceLongBelowEntry(t *testing.T) {
	params := engineParams(t)
	m, _, usdc := liqMarket()

	liq, ok := LiquidationPrice(params, LiqPriceInput{
		Market:           m,
		CollateralToken:  usdc,
		SizeInUsd:        usdmath.ExpandDecimals(10000, 30),
		SizeInTokens:     usdmath.ExpandDecimals(5, 18),
		CollateralUsd:    usdmath.ExpandDecimals(1000, 30),
		CollateralAmount: usdmath.ExpandDecimals(1000, 6),
		IsLong:           true,
	})
	if !ok {
		t.Fatalf("expected defined liquidation price")
	}
	entry := usdmath.ExpandDecimals(2000, 30)
	if liq.Cmp(entry) >= 0 {
		t.Fatalf("long liquidation price %s should sit below entry %s", liq, entry)
	}
	if liq.Sign() <= 0 {
		t.Fatalf("liquidation price must be positive")
	}
}

func TestLiquidationPriceShortAboveEntry(t *testing.T) {
	params := engineParams(t)
	m, _, usdc := liqMarket()

	liq, ok := LiquidationPrice(params, LiqPriceInput{
		Market:           m,
		CollateralToken:  usdc,
		SizeInUsd:        usdmath.ExpandDecimals(10000, 30),
		SizeInTokens:     usdmath.ExpandDecimals(5, 18),
		CollateralUsd:    usdmath.ExpandDecimals(1000, 30),
		CollateralAmount: usdmath.ExpandDecimals(1000, 6),
		IsLong:           false,
	})
	if !ok {
		t.Fatalf("expected defined liquidation price")
	}
	entry := usdmath.ExpandDecimals(2000, 30)
	if liq.Cmp(entry) <= 0 {
		t.Fatalf("short liquidation price %s should sit above entry %s", liq, entry)
	}
}

func TestLiquidationPriceIndexCollateralLong(t *testing.T) {
	params := engineParams(t)
	m, eth, _ := liqMarket()

	// Collateral in the index token joins the denominator.
	liq, ok := LiquidationPrice(params, LiqPriceInput{
		Market:           m,
		CollateralToken:  eth,
		SizeInUsd:        usdmath.ExpandDecimals(10000, 30),
		SizeInTokens:     usdmath.ExpandDecimals(5, 18),
		CollateralUsd:    usdmath.ExpandDecimals(2000, 30),
		CollateralAmount: usdmath.ExpandDecimals(1, 18),
		IsLong:           true,
	})
	if !ok {
		t.Fatalf("expected defined liquidation price")
	}
	// (10000 + 1) / 6 tokens.
	want := new(big.Int).Add(usdmath.ExpandDecimals(10000, 30), params.MinCollateralUsd)
	want.Quo(want, usdmath.ExpandDecimals(6, 18))
	want.Mul(want, usdmath.PowDecimals(18))
	if liq.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, liq)
	}
}

func TestLiquidationPriceUndefinedCases(t *testing.T) {
	params := engineParams(t)
	m, _, usdc := liqMarket()

	if _, ok := LiquidationPrice(params, LiqPriceInput{
		Market:          m,
		CollateralToken: usdc,
		SizeInUsd:       new(big.Int),
		SizeInTokens:    new(big.Int),
		IsLong:          true,
	}); ok {
		t.Fatalf("expected undefined for empty position")
	}

	// Collateral so deep the solution goes non-positive.
	if _, ok := LiquidationPrice(params, LiqPriceInput{
		Market:           m,
		CollateralToken:  usdc,
		SizeInUsd:        usdmath.ExpandDecimals(10000, 30),
		SizeInTokens:     usdmath.ExpandDecimals(5, 18),
		CollateralUsd:    usdmath.ExpandDecimals(20000, 30),
		CollateralAmount: usdmath.ExpandDecimals(20000, 6),
		IsLong:           true,
	}); ok {
		t.Fatalf("expected undefined for non-positive solution")
	}
}

func TestLiquidationPriceUsesMinCollateralFactor(t *testing.T) {
	params := engineParams(t)
	m, _, usdc := liqMarket()
	// 1% of size, well above the $1 floor.
	m.MinCollateralFactor = usdmath.ExpandDecimals(1, 28)

	withFactor, ok := LiquidationPrice(params, LiqPriceInput{
		Market:           m,
		CollateralToken:  usdc,
		SizeInUsd:        usdmath.ExpandDecimals(10000, 30),
		SizeInTokens:     usdmath.ExpandDecimals(5, 18),
		CollateralUsd:    usdmath.ExpandDecimals(1000, 30),
		CollateralAmount: usdmath.ExpandDecimals(1000, 6),
		IsLong:           true,
	})
	if !ok {
		t.Fatalf("expected defined liquidation price")
	}

	m.MinCollateralFactor = nil
	withFloor, _ := LiquidationPrice(params, LiqPriceInput{
		Market:           m,
		CollateralToken:  usdc,
		SizeInUsd:        usdmath.ExpandDecimals(10000, 30),
		SizeInTokens:     usdmath.ExpandDecimals(5, 18),
		CollateralUsd:    usdmath.ExpandDecimals(1000, 30),
		CollateralAmount: usdmath.ExpandDecimals(1000, 6),
		IsLong:           true,
	})
	if withFactor.Cmp(withFloor) <= 0 {
		t.Fatalf("higher collateral threshold should raise the long liquidation price: %s vs %s", withFactor, withFloor)
	}
}
