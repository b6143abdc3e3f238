package domain

import (
	"time"
)

// Outcome is a final underwriting outcome.
type Outcome string

const (
	OutcomeApproved   Outcome = "APPROVED"
	OutcomeConditions Outcome = "APPROVED_WITH_CONDITIONS"
	OutcomeRejected   Outcome = "REJECTED"
)

// Recommendation is the advisory component's suggestion. It never decides:
// the decision authority merges it with the risk tier, and the tier floor
// always dominates.
type Recommendation struct {
	Outcome   Outcome `json:"outcome"`
	Rationale string  `json:"rationale"`

	// Source identifies the advisor that produced the recommendation,
	// or "fallback" when the advisory call failed.
	Source string `json:"source"`
}

// Override is a manual outcome replacement applied by the decision
// authority. The computed outcome is retained alongside for audit.
type Override struct {
	RuleID  string  `json:"ruleId"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason"`
}

// Decision is the sole authoritative underwriting output. Decisions are
// append-only per merchant; new runs create new records.
type Decision struct {
	ID         string  `json:"id"`
	MerchantID string  `json:"merchantId"`
	Outcome    Outcome `json:"outcome"`

	// ComputedOutcome is the pre-override outcome, set only when an
	// override replaced it.
	ComputedOutcome Outcome `json:"computedOutcome,omitempty"`
	OverrideRuleID  string  `json:"overrideRuleId,omitempty"`

	Tier      Tier   `json:"tier"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`

	// AdvisorySource records where the rationale came from
	// (advisor id or "fallback").
	AdvisorySource string `json:"advisorySource,omitempty"`

	Offer *FinancialOffer `json:"offer,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Approved reports whether the decision permits an offer notification.
func (d *Decision) Approved() bool {
	return d.Outcome == OutcomeApproved || d.Outcome == OutcomeConditions
}
