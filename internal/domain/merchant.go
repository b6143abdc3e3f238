package domain

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// ProductMode selects which financial products an offer is computed for.
type ProductMode string

const (
	ModeCredit    ProductMode = "credit"
	ModeInsurance ProductMode = "insurance"
	ModeBoth      ProductMode = "both"
)

// MerchantProfile holds the financial and behavioral attributes used for
// underwriting, plus the contact channel for notifications.
// Business fields are owned by the merchant repository; the pipeline and
// monitor only read them.
type MerchantProfile struct {
	ID           string `json:"id" validate:"required"`
	BusinessName string `json:"businessName"`
	Category     string `json:"category"`

	// Contact channel for notification delivery (raw, pre-normalization).
	ContactNumber string `json:"contactNumber"`

	// SecureToken identifies the merchant's public offer page.
	SecureToken string `json:"secureToken"`

	// Financial attributes
	MonthlyRevenue  float64   `json:"monthlyRevenue" validate:"required,gt=0"`
	CreditScore     int       `json:"creditScore" validate:"required,gte=300,lte=850"`
	YearsInBusiness int       `json:"yearsInBusiness" validate:"gte=0"`
	ExistingLoans   int       `json:"existingLoans" validate:"gte=0"`
	PastDefaults    int       `json:"pastDefaults" validate:"gte=0"`
	MonthlyGMV      []float64 `json:"monthlyGmv"` // trailing months, oldest first

	// Behavioral attributes
	RefundRate         float64 `json:"refundRate" validate:"gte=0,lte=1"`
	ChargebackRate     float64 `json:"chargebackRate" validate:"gte=0,lte=1"`
	CustomerReturnRate float64 `json:"customerReturnRate" validate:"gte=0,lte=1"`
	UniqueCustomers    int     `json:"uniqueCustomers" validate:"gte=0"`
	AvgOrderValue      float64 `json:"avgOrderValue" validate:"gte=0"`
	SeasonalityIndex   float64 `json:"seasonalityIndex"`

	// ProductMode is the product set the merchant applied for.
	ProductMode ProductMode `json:"productMode" validate:"omitempty,oneof=credit insurance both"`

	// LastNotificationStatus is the derived latest dispatch status
	// ("" = unknown). Reset by the monitor's cache clear.
	LastNotificationStatus string `json:"lastNotificationStatus,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var profileValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the profile is well-formed for scoring.
// The risk scorer assumes validated input; callers must run this first.
func (m *MerchantProfile) Validate() error {
	if err := profileValidator.Struct(m); err != nil {
		return &ValidationError{MerchantID: m.ID, Err: err}
	}
	return nil
}

// Mode returns the requested product mode, defaulting to both.
func (m *MerchantProfile) Mode() ProductMode {
	switch m.ProductMode {
	case ModeCredit, ModeInsurance, ModeBoth:
		return m.ProductMode
	default:
		return ModeBoth
	}
}

// AvgMonthlyGMV returns the trailing average of the monthly GMV series,
// falling back to monthly revenue when no history exists.
func (m *MerchantProfile) AvgMonthlyGMV() float64 {
	if len(m.MonthlyGMV) == 0 {
		return m.MonthlyRevenue
	}
	var sum float64
	for _, v := range m.MonthlyGMV {
		sum += v
	}
	return sum / float64(len(m.MonthlyGMV))
}
