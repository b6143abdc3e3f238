package scoring

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func strongMerchant() *domain.MerchantProfile {
	return &domain.MerchantProfile{
		ID:                 "m-strong",
		Category:           "Grocery",
		MonthlyRevenue:     90000,
		CreditScore:        820,
		YearsInBusiness:    6,
		ExistingLoans:      1,
		PastDefaults:       0,
		MonthlyGMV:         []float64{400000, 450000, 420000},
		RefundRate:         0.02,
		ChargebackRate:     0.01,
		CustomerReturnRate: 0.6,
		UniqueCustomers:    4500,
		SeasonalityIndex:   1.0,
	}
}

func TestScoreStrongMerchantTierOne(t *testing.T) {
	scorer := NewScorer()
	rp := scorer.Score(strongMerchant())

	if rp.Tier != domain.TierOne {
		t.Errorf("expected %s, got %s (score %d)", domain.TierOne, rp.Tier, rp.Score)
	}
	if rp.Score < 75 || rp.Score > 100 {
		t.Errorf("expected score in [75,100], got %d", rp.Score)
	}
	if len(rp.Flags) != 0 {
		t.Errorf("expected no flags, got %v", rp.Flags)
	}
	if len(rp.FactorScores) != 8 {
		t.Errorf("expected 8 factor scores, got %d", len(rp.FactorScores))
	}
}

func TestScoreMidMerchantTierTwo(t *testing.T) {
	m := &domain.MerchantProfile{
		ID:                 "m-mid",
		MonthlyRevenue:     40000,
		CreditScore:        700,
		YearsInBusiness:    3,
		ExistingLoans:      1,
		PastDefaults:       1,
		MonthlyGMV:         []float64{140000, 150000, 160000},
		RefundRate:         0.05,
		ChargebackRate:     0.03,
		CustomerReturnRate: 0.4,
		UniqueCustomers:    1500,
		SeasonalityIndex:   1.0,
	}

	rp := NewScorer().Score(m)
	if rp.Tier != domain.TierTwo {
		t.Errorf("expected %s, got %s (score %d)", domain.TierTwo, rp.Tier, rp.Score)
	}
}

func TestScoreWeakMerchantTierThree(t *testing.T) {
	m := &domain.MerchantProfile{
		ID:                 "m-weak",
		MonthlyRevenue:     15000,
		CreditScore:        580,
		YearsInBusiness:    1,
		PastDefaults:       2,
		MonthlyGMV:         []float64{20000, 25000},
		RefundRate:         0.05,
		ChargebackRate:     0.05,
		CustomerReturnRate: 0.1,
		UniqueCustomers:    200,
	}

	rp := NewScorer().Score(m)
	if rp.Tier != domain.TierThree {
		t.Errorf("expected %s, got %s (score %d)", domain.TierThree, rp.Tier, rp.Score)
	}
	if rp.Score >= 50 {
		t.Errorf("expected score below 50, got %d", rp.Score)
	}
	if !rp.HasFlag(domain.FlagThinGMVHistory) {
		t.Errorf("expected thin GMV history flag, got %v", rp.Flags)
	}
}

func TestHardFloors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.MerchantProfile)
		flag   string
	}{
		{"ChargebackRate", func(m *domain.MerchantProfile) { m.ChargebackRate = 0.20 }, domain.FlagChargebackFloor},
		{"CreditScore", func(m *domain.MerchantProfile) { m.CreditScore = 500 }, domain.FlagCreditFloor},
		{"PastDefaults", func(m *domain.MerchantProfile) { m.PastDefaults = 3 }, domain.FlagDefaultsFloor},
	}

	scorer := NewScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := strongMerchant()
			tt.mutate(m)

			rp := scorer.Score(m)
			if rp.Score != 0 {
				t.Errorf("expected score 0 on hard floor, got %d", rp.Score)
			}
			if rp.Tier != domain.TierThree {
				t.Errorf("expected %s, got %s", domain.TierThree, rp.Tier)
			}
			if !rp.HasFlag(tt.flag) {
				t.Errorf("expected flag %s, got %v", tt.flag, rp.Flags)
			}
		})
	}
}

func TestBoundaryAtFloorIsNotFloored(t *testing.T) {
	// Floors are strict: exactly at the bound is still acceptable.
	m := strongMerchant()
	m.ChargebackRate = ChargebackFloorRate
	m.CreditScore = CreditScoreFloor
	m.PastDefaults = MaxPastDefaults

	rp := NewScorer().Score(m)
	if rp.Score == 0 && rp.Tier == domain.TierThree && len(rp.Flags) == 1 {
		t.Errorf("boundary values must not trigger a hard floor (score %d, flags %v)", rp.Score, rp.Flags)
	}
}

func TestWarningFlags(t *testing.T) {
	m := strongMerchant()
	m.RefundRate = 0.15
	m.SeasonalityIndex = 2.0
	m.ExistingLoans = 4
	m.MonthlyGMV = []float64{400000}

	rp := NewScorer().Score(m)
	for _, flag := range []string{
		domain.FlagHighRefundRate,
		domain.FlagThinGMVHistory,
		domain.FlagHighSeasonality,
		domain.FlagLoanStacking,
	} {
		if !rp.HasFlag(flag) {
			t.Errorf("expected flag %s, got %v", flag, rp.Flags)
		}
	}
}

func TestCategoryAdjustment(t *testing.T) {
	base := strongMerchant()
	base.Category = ""
	baseline := NewScorer().Score(base).Score

	favored := strongMerchant()
	favored.Category = "Travel"
	adjusted := NewScorer().Score(favored).Score

	if adjusted >= baseline {
		t.Errorf("expected Travel adjustment to lower score: baseline %d, adjusted %d", baseline, adjusted)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := NewScorer()
	m := strongMerchant()

	first := scorer.Score(m)
	for i := 0; i < 10; i++ {
		if got := scorer.Score(m); got.Score != first.Score || got.Tier != first.Tier {
			t.Fatalf("score not deterministic: run %d got %d/%s, want %d/%s",
				i, got.Score, got.Tier, first.Score, first.Tier)
		}
	}
}

func TestSnapshotIgnoresNonScoringFields(t *testing.T) {
	a := strongMerchant()
	b := strongMerchant()
	b.BusinessName = "Renamed Trading Co"
	b.SecureToken = "other-token"
	b.LastNotificationStatus = "DELIVERED"

	sa, _ := json.Marshal(NewSnapshot(a))
	sb, _ := json.Marshal(NewSnapshot(b))
	if !bytes.Equal(sa, sb) {
		t.Error("snapshot must not change when cosmetic fields change")
	}

	b.ContactNumber = "9876543210"
	sc, _ := json.Marshal(NewSnapshot(b))
	if bytes.Equal(sa, sc) {
		t.Error("snapshot must change when the contact number changes")
	}
}
