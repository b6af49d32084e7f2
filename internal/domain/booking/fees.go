package booking

import "github.com/homease/service-booking/internal/pkg/apperr"

// PlatformFeePercent is the marketplace's fixed cut of a booking's price.
const PlatformFeePercent = 7

// FeeBreakdown is the financial split snapshotted onto a booking at
// creation time. PlatformFee + ProviderEarnings == TotalAmount always.
type FeeBreakdown struct {
	TotalAmount      int64 `json:"total_amount"`
	PlatformFee      int64 `json:"platform_fee"`
	ProviderEarnings int64 `json:"provider_earnings"`
}

// CalculateFees splits a service price (in the smallest currency unit) into
// the platform fee and provider earnings. The fee rounds down; the provider
// keeps the remainder, so the invariant holds exactly in integer arithmetic.
// The customer-facing total is the price itself; tax is computed only at
// invoice time and never stored.
func CalculateFees(priceAmount int64) (FeeBreakdown, error) {
	if priceAmount <= 0 {
		return FeeBreakdown{}, apperr.NewValidationError("service price must be positive")
	}

	fee := priceAmount * PlatformFeePercent / 100
	return FeeBreakdown{
		TotalAmount:      priceAmount,
		PlatformFee:      fee,
		ProviderEarnings: priceAmount - fee,
	}, nil
}
