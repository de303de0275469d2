package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenPrices holds the current bid/ask pair for a token. Prices are
// USD per whole token at the 1e30 scale. Min <= Max.
type TokenPrices struct {
	Min *big.Int
	Max *big.Int
}

type TokenData struct {
	Address  common.Address
	Symbol   string
	Decimals int
	Prices   TokenPrices

	// WrappedAddress links a native token to its wrapped form so the
	// pair is treated as economically equivalent.
	WrappedAddress common.Address
	HasWrapped     bool
	IsWrapped      bool
}

// MarketInfo is an immutable snapshot of one pool. Fee and impact
// factors are 1e30-scaled fractions; interest and pool values are
// 1e30-scaled USD.
type MarketInfo struct {
	MarketAddress common.Address
	Name          string

	IndexToken *TokenData
	LongToken  *TokenData
	ShortToken *TokenData

	LongPoolAmount  *big.Int
	ShortPoolAmount *big.Int

	LongInterestUsd  *big.Int
	ShortInterestUsd *big.Int

	PositionFeeFactor    *big.Int
	SwapFeeFactor        *big.Int
	PositionImpactFactor *big.Int
	SwapImpactFactor     *big.Int
	MinCollateralFactor  *big.Int
}

func (m *MarketInfo) PnlToken(isLong bool) *TokenData {
	if isLong {
		return m.LongToken
	}
	return m.ShortToken
}

// PoolValueUsd values both sides of the pool at their mid prices.
func (m *MarketInfo) PoolValueUsd() *big.Int {
	out := new(big.Int)
	if m.LongToken != nil && m.LongPoolAmount != nil && m.LongToken.Prices.Min != nil {
		longUsd := new(big.Int).Mul(m.LongPoolAmount, m.LongToken.Prices.Min)
		longUsd.Quo(longUsd, pow10(m.LongToken.Decimals))
		out.Add(out, longUsd)
	}
	if m.ShortToken != nil && m.ShortPoolAmount != nil && m.ShortToken.Prices.Min != nil {
		shortUsd := new(big.Int).Mul(m.ShortPoolAmount, m.ShortToken.Prices.Min)
		shortUsd.Quo(shortUsd, pow10(m.ShortToken.Decimals))
		out.Add(out, shortUsd)
	}
	return out
}

func pow10(decimals int) *big.Int {
	if decimals < 0 {
		decimals = 0
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

type MarketsInfoData map[common.Address]*MarketInfo

func (d MarketsInfoData) Get(addr common.Address) (*MarketInfo, bool) {
	m, ok := d[addr]
	return m, ok
}

type TokensData map[common.Address]*TokenData

func (d TokensData) Get(addr common.Address) (*TokenData, bool) {
	t, ok := d[addr]
	return t, ok
}
