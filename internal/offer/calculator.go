// Package offer computes financial offers from tier and GMV history.
package offer

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// TierPolicy defines offer terms for a risk tier. A nil policy means the
// tier is disqualified from all products.
type TierPolicy struct {
	CreditMultiplier   float64 // × trailing average monthly GMV
	CreditCap          float64
	AnnualRatePct      float64
	TenureMonths       []int
	CoverageMultiplier float64 // × trailing average monthly GMV
	CoverageCap        float64
	PremiumRate        float64 // fraction of coverage, risk-loaded per tier
	PolicyClass        string
}

// DefaultPolicies maps risk tiers to their offer policies.
// The worst tier is never eligible for any product.
var DefaultPolicies = map[domain.Tier]*TierPolicy{
	domain.TierOne: {
		CreditMultiplier:   3.0,
		CreditCap:          5_000_000,
		AnnualRatePct:      12.0,
		TenureMonths:       []int{6, 12, 24},
		CoverageMultiplier: 2.0,
		CoverageCap:        10_000_000,
		PremiumRate:        0.015,
		PolicyClass:        "standard",
	},
	domain.TierTwo: {
		CreditMultiplier:   1.5,
		CreditCap:          1_500_000,
		AnnualRatePct:      16.0,
		TenureMonths:       []int{6, 12},
		CoverageMultiplier: 1.0,
		CoverageCap:        2_500_000,
		PremiumRate:        0.025,
		PolicyClass:        "risk-loaded",
	},
	domain.TierThree: nil,
}

// Calculator computes offers from the tier policy table. Pure and total
// over valid tiers: it performs no I/O and never fails.
type Calculator struct {
	policies map[domain.Tier]*TierPolicy
}

// NewCalculator returns a calculator with the default policy table.
func NewCalculator() *Calculator {
	return &Calculator{policies: DefaultPolicies}
}

// Calculate returns the offer for the tier and the merchant's requested
// product mode, or nil when the tier is disqualified. Offer sizing uses
// the same trailing GMV average as the scorer, with the same revenue
// fallback when no history exists. Only the requested components are
// computed; the others stay nil so callers can distinguish
// "not requested" from "zero".
func (c *Calculator) Calculate(tier domain.Tier, m *domain.MerchantProfile) *domain.FinancialOffer {
	policy := c.policies[tier]
	if policy == nil {
		return nil
	}

	avgGMV := m.AvgMonthlyGMV()
	mode := m.Mode()
	offer := &domain.FinancialOffer{}

	if mode == domain.ModeCredit || mode == domain.ModeBoth {
		limit := math.Min(avgGMV*policy.CreditMultiplier, policy.CreditCap)
		offer.Credit = &domain.CreditOffer{
			Limit:         math.Round(limit),
			AnnualRatePct: policy.AnnualRatePct,
			TenureMonths:  policy.TenureMonths,
		}
	}

	if mode == domain.ModeInsurance || mode == domain.ModeBoth {
		coverage := math.Min(avgGMV*policy.CoverageMultiplier, policy.CoverageCap)
		offer.Insurance = &domain.InsuranceOffer{
			Coverage:      math.Round(coverage),
			AnnualPremium: math.Round(coverage * policy.PremiumRate),
			PolicyClass:   policy.PolicyClass,
		}
	}

	return offer
}
