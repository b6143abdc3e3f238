package domain

// Tier is the ordered risk classification derived from the composite score.
// TierOne is the lowest risk, TierThree the highest.
type Tier string

const (
	TierOne   Tier = "TIER_1"
	TierTwo   Tier = "TIER_2"
	TierThree Tier = "TIER_3"
)

// Rank returns the tier's position, 1 = lowest risk.
func (t Tier) Rank() int {
	switch t {
	case TierOne:
		return 1
	case TierTwo:
		return 2
	default:
		return 3
	}
}

// Risk flags name the factors that drove a profile's classification.
const (
	FlagChargebackFloor = "CHARGEBACK_RATE_FLOOR"
	FlagCreditFloor     = "CREDIT_SCORE_FLOOR"
	FlagDefaultsFloor   = "PAST_DEFAULTS_FLOOR"
	FlagHighRefundRate  = "HIGH_REFUND_RATE"
	FlagThinGMVHistory  = "THIN_GMV_HISTORY"
	FlagHighSeasonality = "HIGH_SEASONALITY"
	FlagLoanStacking    = "LOAN_STACKING"
)

// RiskProfile is the immutable result of risk scoring.
// Created fresh on every pipeline run, never mutated.
type RiskProfile struct {
	MerchantID string `json:"merchantId"`

	// Score is the composite risk score, clamped to [0,100].
	// Higher is better (lower risk).
	Score int `json:"score"`

	Tier Tier `json:"tier"`

	// Flags name the contributing factors (hard floors, warnings).
	Flags []string `json:"flags,omitempty"`

	// FactorScores records each factor's normalized contribution for audit.
	FactorScores map[string]float64 `json:"factorScores,omitempty"`
}

// HasFlag reports whether the profile carries the named flag.
func (r *RiskProfile) HasFlag(name string) bool {
	for _, f := range r.Flags {
		if f == name {
			return true
		}
	}
	return false
}
