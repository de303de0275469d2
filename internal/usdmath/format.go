package usdmath

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatUsd renders a 1e30-scaled USD value as a human-readable string
// with two fractional digits. Display only; never feed the result back
// into engine math.
func FormatUsd(usd *big.Int) string {
	if usd == nil {
		return "-"
	}
	return decimal.NewFromBigInt(usd, -USDDecimals).StringFixed(2)
}

// FormatTokenAmount renders a 10^decimals-scaled token amount.
func FormatTokenAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "-"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// FormatPrice renders a 1e30-scaled per-whole-token price in USD.
func FormatPrice(price *big.Int) string {
	if price == nil {
		return "-"
	}
	return decimal.NewFromBigInt(price, -USDDecimals).StringFixed(4)
}

// FormatBps renders a basis-points value as a multiplier, e.g. 50000 -> "5".
func FormatBps(bps, divisor *big.Int) string {
	if bps == nil || divisor == nil || divisor.Sign() == 0 {
		return "-"
	}
	return decimal.NewFromBigInt(bps, 0).Div(decimal.NewFromBigInt(divisor, 0)).String()
}
