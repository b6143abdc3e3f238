// Package decision implements the single decision authority. No other
// component may emit a final underwriting outcome.
package decision

import (
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Input carries everything the authority merges into one decision.
type Input struct {
	Merchant *domain.MerchantProfile
	Risk     *domain.RiskProfile

	// Recommendation is the advisory suggestion, nil when the advisory
	// call failed. A nil recommendation substitutes FallbackRationale,
	// never a fallback outcome.
	Recommendation    *domain.Recommendation
	FallbackRationale string

	// Override, when present, replaces the computed outcome. The
	// computed outcome is kept on the record for audit.
	Override *domain.Override
}

// Authority merges the risk tier, the advisory recommendation, and any
// manual override into exactly one decision.
type Authority struct{}

// NewAuthority returns the decision authority.
func NewAuthority() *Authority {
	return &Authority{}
}

// Decide produces the final decision. The merge is asymmetric: the risk
// floor dominates the advisory in both directions. The worst tier is
// rejected unconditionally; a mid tier defaults to conditional approval
// and is lifted to full approval only when the advisory agrees on it; the
// top tier defaults to approval and is demoted to conditional when the
// advisory recommends rejection. The advisory alone can never approve a
// structurally disqualified merchant nor reject outright.
func (a *Authority) Decide(in *Input) *domain.Decision {
	computed := mergeOutcome(in.Risk.Tier, in.Recommendation)

	d := &domain.Decision{
		ID:         uuid.New().String(),
		MerchantID: in.Merchant.ID,
		Outcome:    computed,
		Tier:       in.Risk.Tier,
		Score:      in.Risk.Score,
		CreatedAt:  time.Now().UTC(),
	}

	if in.Recommendation != nil {
		d.Rationale = in.Recommendation.Rationale
		d.AdvisorySource = in.Recommendation.Source
	} else {
		d.Rationale = in.FallbackRationale
		d.AdvisorySource = "fallback"
	}

	if in.Override != nil {
		d.ComputedOutcome = computed
		d.Outcome = in.Override.Outcome
		d.OverrideRuleID = in.Override.RuleID
		if in.Override.Reason != "" {
			d.Rationale = in.Override.Reason + ". " + d.Rationale
		}
	}

	return d
}

func mergeOutcome(tier domain.Tier, rec *domain.Recommendation) domain.Outcome {
	switch tier {
	case domain.TierThree:
		// Unconditional: no recommendation value can lift the floor.
		return domain.OutcomeRejected
	case domain.TierTwo:
		if rec != nil && rec.Outcome == domain.OutcomeApproved {
			return domain.OutcomeApproved
		}
		return domain.OutcomeConditions
	default: // TierOne
		if rec != nil && rec.Outcome == domain.OutcomeRejected {
			return domain.OutcomeConditions
		}
		return domain.OutcomeApproved
	}
}
