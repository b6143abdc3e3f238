package domain

// CreditOffer is the credit line component of a financial offer.
type CreditOffer struct {
	Limit         float64 `json:"limit"`
	AnnualRatePct float64 `json:"annualRatePct"`
	TenureMonths  []int   `json:"tenureMonths"`
}

// InsuranceOffer is the business insurance component of a financial offer.
type InsuranceOffer struct {
	Coverage      float64 `json:"coverage"`
	AnnualPremium float64 `json:"annualPremium"`
	PolicyClass   string  `json:"policyClass"`
}

// FinancialOffer bundles the product components computed for an approved
// merchant. A nil component means it was not requested or the tier
// disqualifies it. Zero-valued components never occur for validated
// profiles.
type FinancialOffer struct {
	Credit    *CreditOffer    `json:"credit,omitempty"`
	Insurance *InsuranceOffer `json:"insurance,omitempty"`
}

// Empty reports whether the offer carries no components.
func (o *FinancialOffer) Empty() bool {
	return o == nil || (o.Credit == nil && o.Insurance == nil)
}
