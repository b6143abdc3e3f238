package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// HeuristicAdvisor is the built-in advisor used when no remote endpoint is
// configured. It derives a suggestion from the risk profile alone, so it is
// deterministic and always available.
type HeuristicAdvisor struct{}

// NewHeuristicAdvisor returns the built-in advisor.
func NewHeuristicAdvisor() *HeuristicAdvisor {
	return &HeuristicAdvisor{}
}

// Recommend suggests the tier's natural outcome with a short narrative,
// lifting a clean upper-band TIER_2 profile to an unconditional approval.
func (a *HeuristicAdvisor) Recommend(_ context.Context, m *domain.MerchantProfile, rp *domain.RiskProfile) (*domain.Recommendation, error) {
	var outcome domain.Outcome
	switch rp.Tier {
	case domain.TierOne:
		outcome = domain.OutcomeApproved
	case domain.TierTwo:
		if rp.Score >= 65 && len(rp.Flags) == 0 {
			outcome = domain.OutcomeApproved
		} else {
			outcome = domain.OutcomeConditions
		}
	default:
		outcome = domain.OutcomeRejected
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Composite risk score of %d/100 places %s in %s. ", rp.Score, m.ID, rp.Tier)
	switch outcome {
	case domain.OutcomeApproved:
		fmt.Fprintf(&b, "Financial depth (revenue %.0f/month, %d years operating) and clean repayment history support full approval.",
			m.MonthlyRevenue, m.YearsInBusiness)
	case domain.OutcomeConditions:
		b.WriteString("Profile supports approval with conditions; monitor transaction-risk indicators before extending full terms.")
	default:
		b.WriteString("Risk indicators exceed acceptable thresholds; recommend rejection.")
	}
	if len(rp.Flags) > 0 {
		fmt.Fprintf(&b, " Noted factors: %s.", strings.Join(rp.Flags, ", "))
	}

	return &domain.Recommendation{
		Outcome:   outcome,
		Rationale: b.String(),
		Source:    "heuristic",
	}, nil
}
