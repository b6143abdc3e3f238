package scoring

import (
	"math"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Snapshot is the explicit, centrally declared set of merchant fields that
// influence scoring, plus the contact number. Change detection hashes this
// struct, so its field set must stay in lockstep with what Score reads;
// the contact number is included because a channel change requires
// re-notification even when risk inputs are unchanged.
type Snapshot struct {
	CreditScore        int       `json:"creditScore"`
	MonthlyRevenue     float64   `json:"monthlyRevenue"`
	YearsInBusiness    int       `json:"yearsInBusiness"`
	ExistingLoans      int       `json:"existingLoans"`
	PastDefaults       int       `json:"pastDefaults"`
	MonthlyGMV         []float64 `json:"monthlyGmv"`
	RefundRate         float64   `json:"refundRate"`
	ChargebackRate     float64   `json:"chargebackRate"`
	CustomerReturnRate float64   `json:"customerReturnRate"`
	UniqueCustomers    int       `json:"uniqueCustomers"`
	SeasonalityIndex   float64   `json:"seasonalityIndex"`
	Category           string    `json:"category"`
	ProductMode        string    `json:"productMode"`
	ContactNumber      string    `json:"contactNumber"`
}

// NewSnapshot extracts the scoring-relevant fields from a profile.
// Rates are rounded to 4 decimals so float noise does not churn the hash.
func NewSnapshot(m *domain.MerchantProfile) *Snapshot {
	gmv := make([]float64, len(m.MonthlyGMV))
	for i, v := range m.MonthlyGMV {
		gmv[i] = round4(v)
	}
	return &Snapshot{
		CreditScore:        m.CreditScore,
		MonthlyRevenue:     round4(m.MonthlyRevenue),
		YearsInBusiness:    m.YearsInBusiness,
		ExistingLoans:      m.ExistingLoans,
		PastDefaults:       m.PastDefaults,
		MonthlyGMV:         gmv,
		RefundRate:         round4(m.RefundRate),
		ChargebackRate:     round4(m.ChargebackRate),
		CustomerReturnRate: round4(m.CustomerReturnRate),
		UniqueCustomers:    m.UniqueCustomers,
		SeasonalityIndex:   round4(m.SeasonalityIndex),
		Category:           m.Category,
		ProductMode:        string(m.Mode()),
		ContactNumber:      m.ContactNumber,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
