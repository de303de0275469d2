package market

import "math/big"

// MarkPrice picks the bid or ask side for valuing an order. Increasing a
// long (or decreasing a short) crosses the ask; the mirror cases cross
// the bid. The side that places the order always gets the worse price.
func MarkPrice(prices TokenPrices, isIncrease, isLong bool) *big.Int {
	useMax := isLong
	if !isIncrease {
		useMax = !isLong
	}
	if useMax {
		return new(big.Int).Set(prices.Max)
	}
	return new(big.Int).Set(prices.Min)
}

// EquivalentTokens reports whether two tokens are economically the same
// asset: identical address, or a native/wrapped pairing.
func EquivalentTokens(a, b *TokenData) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Address == b.Address {
		return true
	}
	if a.HasWrapped && a.WrappedAddress == b.Address {
		return true
	}
	if b.HasWrapped && b.WrappedAddress == a.Address {
		return true
	}
	return false
}
