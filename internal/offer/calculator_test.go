package offer

import (
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func merchant(gmv []float64, mode domain.ProductMode) *domain.MerchantProfile {
	return &domain.MerchantProfile{
		ID:             "m-001",
		MonthlyRevenue: 90000,
		MonthlyGMV:     gmv,
		ProductMode:    mode,
	}
}

var gmvHistory = []float64{100000, 120000, 110000} // avg 110000

func TestTierOneOffer(t *testing.T) {
	calc := NewCalculator()
	offer := calc.Calculate(domain.TierOne, merchant(gmvHistory, domain.ModeBoth))

	if offer == nil {
		t.Fatal("expected offer for TIER_1")
	}
	if offer.Credit == nil || offer.Insurance == nil {
		t.Fatal("expected both credit and insurance components")
	}

	// 3.0 × 110000 = 330000, under the cap
	if offer.Credit.Limit != 330000 {
		t.Errorf("expected limit 330000, got %.0f", offer.Credit.Limit)
	}
	if offer.Credit.AnnualRatePct != 12.0 {
		t.Errorf("expected rate 12.0, got %.1f", offer.Credit.AnnualRatePct)
	}
	if len(offer.Credit.TenureMonths) != 3 {
		t.Errorf("expected 3 tenures, got %v", offer.Credit.TenureMonths)
	}

	// 2.0 × 110000 = 220000 coverage, premium 1.5%
	if offer.Insurance.Coverage != 220000 {
		t.Errorf("expected coverage 220000, got %.0f", offer.Insurance.Coverage)
	}
	if offer.Insurance.AnnualPremium != 3300 {
		t.Errorf("expected premium 3300, got %.0f", offer.Insurance.AnnualPremium)
	}
	if offer.Insurance.PolicyClass != "standard" {
		t.Errorf("expected standard policy class, got %s", offer.Insurance.PolicyClass)
	}
}

func TestTierTwoOfferIsRiskLoaded(t *testing.T) {
	calc := NewCalculator()
	offer := calc.Calculate(domain.TierTwo, merchant(gmvHistory, domain.ModeBoth))

	if offer == nil {
		t.Fatal("expected offer for TIER_2")
	}
	if offer.Credit.Limit != 165000 { // 1.5 × 110000
		t.Errorf("expected limit 165000, got %.0f", offer.Credit.Limit)
	}
	if offer.Credit.AnnualRatePct <= 12.0 {
		t.Errorf("expected rate above TIER_1's, got %.1f", offer.Credit.AnnualRatePct)
	}
	if offer.Insurance.PolicyClass != "risk-loaded" {
		t.Errorf("expected risk-loaded policy class, got %s", offer.Insurance.PolicyClass)
	}
}

func TestTierThreeDisqualified(t *testing.T) {
	calc := NewCalculator()
	if offer := calc.Calculate(domain.TierThree, merchant(gmvHistory, domain.ModeBoth)); offer != nil {
		t.Errorf("expected nil offer for TIER_3, got %+v", offer)
	}
}

func TestCreditCapApplies(t *testing.T) {
	calc := NewCalculator()
	huge := []float64{3_000_000, 3_000_000}

	offer := calc.Calculate(domain.TierOne, merchant(huge, domain.ModeCredit))
	if offer.Credit.Limit != 5_000_000 {
		t.Errorf("expected capped limit 5000000, got %.0f", offer.Credit.Limit)
	}
}

func TestProductModeFiltering(t *testing.T) {
	calc := NewCalculator()

	creditOnly := calc.Calculate(domain.TierOne, merchant(gmvHistory, domain.ModeCredit))
	if creditOnly.Credit == nil || creditOnly.Insurance != nil {
		t.Error("credit mode must produce only the credit component")
	}

	insuranceOnly := calc.Calculate(domain.TierOne, merchant(gmvHistory, domain.ModeInsurance))
	if insuranceOnly.Insurance == nil || insuranceOnly.Credit != nil {
		t.Error("insurance mode must produce only the insurance component")
	}
}

func TestEmptyGMVHistoryFallsBackToRevenue(t *testing.T) {
	calc := NewCalculator()
	offer := calc.Calculate(domain.TierTwo, merchant(nil, domain.ModeCredit))

	if offer == nil {
		t.Fatal("expected offer even with empty GMV history")
	}
	// 1.5 × 90000 monthly revenue
	if offer.Credit.Limit != 135000 {
		t.Errorf("expected limit 135000 from the revenue fallback, got %.0f", offer.Credit.Limit)
	}
}
