// Package pricing computes the financial breakdown of a booking. It is pure:
// no clock, no store, no side effects.
package pricing

import (
	"fmt"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
)

// bps denominator: 10000 bp == 100.00%
const bpsScale = 10000

// Compute derives the full cost breakdown from the provider rate and the
// platform commission and tax rates. Amounts are integer cents, rates are
// basis points. Each derived field is rounded half-up independently and the
// total is the sum of the rounded parts, so the components always add up
// exactly to the total.
func Compute(providerRateCents, commissionRateBps, taxRateBps int64) (domain.CostBreakdown, error) {
	if providerRateCents < 0 {
		return domain.CostBreakdown{}, fmt.Errorf("provider rate %d: %w", providerRateCents, apperrors.ErrInvalidRate)
	}
	if commissionRateBps < 0 {
		return domain.CostBreakdown{}, fmt.Errorf("commission rate %d: %w", commissionRateBps, apperrors.ErrInvalidRate)
	}
	if taxRateBps < 0 {
		return domain.CostBreakdown{}, fmt.Errorf("tax rate %d: %w", taxRateBps, apperrors.ErrInvalidRate)
	}

	commission := applyRate(providerRateCents, commissionRateBps)
	taxes := applyRate(providerRateCents, taxRateBps)

	return domain.CostBreakdown{
		ProviderRateCents:       providerRateCents,
		CommissionRateBps:       commissionRateBps,
		TaxRateBps:              taxRateBps,
		PlatformCommissionCents: commission,
		TaxesCents:              taxes,
		TotalCents:              providerRateCents + commission + taxes,
	}, nil
}

// applyRate multiplies an amount by a basis-point rate, rounding half-up.
// Inputs are validated non-negative before this is called.
func applyRate(amountCents, rateBps int64) int64 {
	return (amountCents*rateBps + bpsScale/2) / bpsScale
}
