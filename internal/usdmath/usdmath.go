package usdmath

import (
	"math/big"
)

// USDDecimals is the fixed-point scale for USD values, matching the
// on-chain representation.
const USDDecimals = 30

var (
	usdScale = PowDecimals(USDDecimals)
	zero     = big.NewInt(0)
)

func PowDecimals(decimals int) *big.Int {
	if decimals < 0 {
		decimals = 0
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func ExpandDecimals(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), PowDecimals(decimals))
}

// USDScale returns a fresh copy of 10^30.
func USDScale() *big.Int {
	return new(big.Int).Set(usdScale)
}

// ConvertToUsd converts a token amount (10^decimals scale) priced at a
// 1e30-scaled per-whole-token price into a 1e30-scaled USD value.
// Returns nil when amount or price is nil.
func ConvertToUsd(amount *big.Int, decimals int, price *big.Int) *big.Int {
	if amount == nil || price == nil {
		return nil
	}
	out := new(big.Int).Mul(amount, price)
	return out.Quo(out, PowDecimals(decimals))
}

// ConvertToTokenAmount is the inverse of ConvertToUsd. Returns nil when
// usd or price is nil, or when price is zero.
func ConvertToTokenAmount(usd *big.Int, decimals int, price *big.Int) *big.Int {
	if usd == nil || price == nil || price.Sign() == 0 {
		return nil
	}
	out := new(big.Int).Mul(usd, PowDecimals(decimals))
	return out.Quo(out, price)
}

// ApplyFactor multiplies a value by a 1e30-scaled factor, truncating
// toward zero.
func ApplyFactor(value, factor *big.Int) *big.Int {
	if value == nil || factor == nil {
		return nil
	}
	out := new(big.Int).Mul(value, factor)
	return out.Quo(out, usdScale)
}

// BasisPoints returns numerator*divisor/denominator truncated toward zero.
// Zero denominator yields zero, not a panic.
func BasisPoints(numerator, denominator, divisor *big.Int) *big.Int {
	if numerator == nil || denominator == nil || denominator.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(numerator, divisor)
	return out.Quo(out, denominator)
}

// MulDiv computes value*numerator/denominator truncated toward zero.
func MulDiv(value, numerator, denominator *big.Int) *big.Int {
	if value == nil || numerator == nil || denominator == nil || denominator.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(value, numerator)
	return out.Quo(out, denominator)
}

func Abs(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Abs(v)
}

func Neg(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Neg(v)
}

func Zero() *big.Int {
	return new(big.Int)
}

func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
