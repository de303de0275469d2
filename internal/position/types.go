package position

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"perp-order-engine/internal/market"
)

// Key identifies a position: one account/market/collateral/direction
// combination, hashed on chain.
type Key = common.Hash

// Position is the raw on-chain position state. The engine never mutates
// it, only derives from it.
type Position struct {
	Key     Key
	Account common.Address

	MarketAddress          common.Address
	CollateralTokenAddress common.Address

	SizeInUsd        *big.Int
	SizeInTokens     *big.Int
	CollateralAmount *big.Int
	IsLong           bool

	PendingBorrowingFeesUsd *big.Int

	// FundingFeeAmount accrues in the collateral token.
	FundingFeeAmount *big.Int

	ClaimableLongTokenAmount  *big.Int
	ClaimableShortTokenAmount *big.Int
}

// Info is the display-ready record: the raw position merged with every
// derived health metric. Nil pointer fields mean "undefined", never
// zero.
type Info struct {
	Position

	Market          *market.MarketInfo
	IndexToken      *market.TokenData
	CollateralToken *market.TokenData
	PnlToken        *market.TokenData

	MarkPrice        *big.Int
	EntryPrice       *big.Int
	LiquidationPrice *big.Int
	Leverage         *big.Int

	CollateralUsd             *big.Int
	RemainingCollateralUsd    *big.Int
	RemainingCollateralAmount *big.Int

	Pnl                    *big.Int
	PnlPercentage          *big.Int
	PnlAfterFees           *big.Int
	PnlAfterFeesPercentage *big.Int
	NetValue               *big.Int

	ClosingFeeUsd                  *big.Int
	PendingFundingFeesUsd          *big.Int
	PendingClaimableFundingFeesUsd *big.Int
	TotalPendingFeesUsd            *big.Int

	HasLowCollateral bool
}
