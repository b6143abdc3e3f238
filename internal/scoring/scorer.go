// Package scoring computes deterministic merchant risk profiles.
package scoring

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Factor weights for the composite score. Must sum to 1.0.
const (
	weightCredit      = 0.25
	weightRevenue     = 0.20
	weightGMV         = 0.15
	weightBusinessAge = 0.10
	weightVolume      = 0.10
	weightLoyalty     = 0.10
	weightChargeback  = 0.05
	weightDisputes    = 0.05
)

// Hard floors. Any one of these forces the worst tier regardless of the
// composite score.
const (
	// ChargebackFloorRate is the chargeback rate above which a merchant
	// is floored to the worst tier.
	ChargebackFloorRate = 0.15

	// CreditScoreFloor is the minimum acceptable credit score.
	CreditScoreFloor = 550

	// MaxPastDefaults is the highest tolerated default count.
	MaxPastDefaults = 2
)

// Tier boundaries over the composite score. Bands are non-overlapping and
// cover [0,100]: >=75 is TIER_1, >=50 is TIER_2, below is TIER_3.
const (
	tierOneMinScore = 75
	tierTwoMinScore = 50
)

// Normalization caps bound each factor's input range.
const (
	creditScoreMin  = 300
	creditScoreMax  = 850
	revenueCap      = 100000.0
	gmvCap          = 500000.0
	businessAgeCap  = 5
	customerBaseCap = 5000
)

// Advisory warning thresholds. These add flags without changing the tier.
const (
	highRefundRate      = 0.10
	highSeasonality     = 1.5
	loanStackingCount   = 4
	thinGMVHistoryMonth = 3
)

// categoryAdjustments applies a bounded per-category point shift to the
// composite score, reflecting category-level loss experience.
var categoryAdjustments = map[string]float64{
	"Grocery":     3,
	"Services":    2,
	"Restaurants": 1,
	"Fashion":     -2,
	"Electronics": -3,
	"Travel":      -4,
}

// Scorer computes risk profiles. It is a pure function over validated
// input: it performs no I/O and never fails.
type Scorer struct{}

// NewScorer returns a risk scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score evaluates the merchant and returns a fresh risk profile.
// Hard floors are checked before weighted composition and short-circuit
// to the worst tier. The caller must validate the profile first.
func (s *Scorer) Score(m *domain.MerchantProfile) *domain.RiskProfile {
	profile := &domain.RiskProfile{
		MerchantID:   m.ID,
		FactorScores: make(map[string]float64, 8),
	}

	if flag := hardFloor(m); flag != "" {
		profile.Score = 0
		profile.Tier = domain.TierThree
		profile.Flags = append(profile.Flags, flag)
		return profile
	}

	factors := map[string]float64{
		"credit":       normalize(float64(m.CreditScore-creditScoreMin), creditScoreMax-creditScoreMin),
		"revenue":      normalize(m.MonthlyRevenue, revenueCap),
		"gmv":          normalize(m.AvgMonthlyGMV(), gmvCap),
		"business_age": normalize(float64(m.YearsInBusiness), businessAgeCap),
		"volume":       normalize(float64(m.UniqueCustomers), customerBaseCap),
		"loyalty":      clamp01(m.CustomerReturnRate),
		"chargeback":   1 - normalize(m.ChargebackRate, ChargebackFloorRate),
		"disputes":     1 - normalize(float64(m.PastDefaults), MaxPastDefaults+1),
	}
	profile.FactorScores = factors

	composite := factors["credit"]*weightCredit +
		factors["revenue"]*weightRevenue +
		factors["gmv"]*weightGMV +
		factors["business_age"]*weightBusinessAge +
		factors["volume"]*weightVolume +
		factors["loyalty"]*weightLoyalty +
		factors["chargeback"]*weightChargeback +
		factors["disputes"]*weightDisputes

	score := composite*100 + categoryAdjustments[m.Category]
	profile.Score = int(math.Round(math.Max(0, math.Min(100, score))))
	profile.Tier = tierFor(profile.Score)
	profile.Flags = append(profile.Flags, warningFlags(m)...)

	return profile
}

// hardFloor returns the flag for the first violated floor, or "".
func hardFloor(m *domain.MerchantProfile) string {
	switch {
	case m.ChargebackRate > ChargebackFloorRate:
		return domain.FlagChargebackFloor
	case m.CreditScore < CreditScoreFloor:
		return domain.FlagCreditFloor
	case m.PastDefaults > MaxPastDefaults:
		return domain.FlagDefaultsFloor
	default:
		return ""
	}
}

func tierFor(score int) domain.Tier {
	switch {
	case score >= tierOneMinScore:
		return domain.TierOne
	case score >= tierTwoMinScore:
		return domain.TierTwo
	default:
		return domain.TierThree
	}
}

func warningFlags(m *domain.MerchantProfile) []string {
	var flags []string
	if m.RefundRate > highRefundRate {
		flags = append(flags, domain.FlagHighRefundRate)
	}
	if len(m.MonthlyGMV) < thinGMVHistoryMonth {
		flags = append(flags, domain.FlagThinGMVHistory)
	}
	if m.SeasonalityIndex > highSeasonality {
		flags = append(flags, domain.FlagHighSeasonality)
	}
	if m.ExistingLoans >= loanStackingCount {
		flags = append(flags, domain.FlagLoanStacking)
	}
	return flags
}

func normalize(value, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	return clamp01(value / cap)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
