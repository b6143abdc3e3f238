// Package advisory provides the external underwriting-advisor contract
// and its implementations. The advisor suggests an outcome and narrative;
// it never decides. Failures are recovered by the pipeline's fallback
// rationale, so implementations only need a bounded-time contract.
package advisory

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Advisor produces a recommendation for a scored merchant.
// Implementations must respect ctx deadlines; calls are time-bounded by
// the pipeline and a slow advisor is treated as unavailable.
type Advisor interface {
	Recommend(ctx context.Context, m *domain.MerchantProfile, rp *domain.RiskProfile) (*domain.Recommendation, error)
}

// New selects an advisor from configuration: the HTTP advisor when an
// endpoint is configured, otherwise the built-in heuristic advisor.
func New(cfg domain.AdvisoryConfig) Advisor {
	if cfg.Endpoint != "" {
		return NewHTTPAdvisor(cfg)
	}
	return NewHeuristicAdvisor()
}

// FallbackRationale builds the deterministic narrative substituted when
// the advisory call fails or times out. It substitutes a rationale only,
// never a decision.
func FallbackRationale(m *domain.MerchantProfile, rp *domain.RiskProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Automated assessment: risk score %d/100, classification %s. ", rp.Score, rp.Tier)
	fmt.Fprintf(&b, "Based on credit score (%d), business history (%d years), and financial obligations (%d loans, %d defaults).",
		m.CreditScore, m.YearsInBusiness, m.ExistingLoans, m.PastDefaults)
	if len(rp.Flags) > 0 {
		fmt.Fprintf(&b, " Contributing factors: %s.", strings.Join(rp.Flags, ", "))
	}
	return b.String()
}
