package fees

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"perp-order-engine/internal/config"
	"perp-order-engine/internal/market"
	"perp-order-engine/internal/usdmath"
)

// UserReferralInfo describes a trader's referral tier. Discount values
// are basis points of the charged fee.
type UserReferralInfo struct {
	Code           common.Hash
	Affiliate      common.Address
	TotalRebateBps *big.Int
	DiscountBps    *big.Int
}

// FeeItem is a signed fee or rebate: negative DeltaUsd is a cost to the
// user, positive is a rebate.
type FeeItem struct {
	DeltaUsd *big.Int
	Bps      *big.Int
}

func NewFeeItem(deltaUsd, sizedUsd, divisor *big.Int) FeeItem {
	return FeeItem{
		DeltaUsd: new(big.Int).Set(deltaUsd),
		Bps:      usdmath.BasisPoints(deltaUsd, sizedUsd, divisor),
	}
}

type PositionFeeInfo struct {
	PositionFeeUsd *big.Int
	DiscountUsd    *big.Int
	TotalRebateUsd *big.Int
}

// PositionFee computes the open/close fee for a size delta, with the
// referral discount already netted out of PositionFeeUsd. All divisions
// truncate toward zero, matching the on-chain computation; zero size
// yields all zeros.
func PositionFee(params config.EngineParams, m *market.MarketInfo, sizeDeltaUsd *big.Int, referral *UserReferralInfo) PositionFeeInfo {
	info := PositionFeeInfo{
		PositionFeeUsd: new(big.Int),
		DiscountUsd:    new(big.Int),
		TotalRebateUsd: new(big.Int),
	}
	if m == nil || m.PositionFeeFactor == nil || sizeDeltaUsd == nil || sizeDeltaUsd.Sign() == 0 {
		return info
	}

	feeUsd := usdmath.ApplyFactor(usdmath.Abs(sizeDeltaUsd), m.PositionFeeFactor)

	if referral != nil {
		if referral.TotalRebateBps != nil && referral.TotalRebateBps.Sign() > 0 {
			info.TotalRebateUsd = usdmath.MulDiv(feeUsd, referral.TotalRebateBps, params.BasisPointsDivisor)
		}
		if referral.DiscountBps != nil && referral.DiscountBps.Sign() > 0 {
			discountUsd := usdmath.MulDiv(feeUsd, referral.DiscountBps, params.BasisPointsDivisor)
			info.DiscountUsd = discountUsd
			feeUsd = new(big.Int).Sub(feeUsd, discountUsd)
		}
	}

	info.PositionFeeUsd = feeUsd
	return info
}

// SwapFee is the per-hop pool fee for a swap of usdIn through a market.
func SwapFee(m *market.MarketInfo, usdIn *big.Int) *big.Int {
	if m == nil || m.SwapFeeFactor == nil || usdIn == nil || usdIn.Sign() <= 0 {
		return new(big.Int)
	}
	return usdmath.ApplyFactor(usdIn, m.SwapFeeFactor)
}
