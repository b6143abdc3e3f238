package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/opensource-finance/harrier/internal/advisory"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/offer"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/scoring"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "harrier-pipeline-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func newTestPipeline(t *testing.T, repo domain.Repository, advisor advisory.Advisor, overrides *policy.Engine) *Pipeline {
	t.Helper()
	if advisor == nil {
		advisor = advisory.NewHeuristicAdvisor()
	}
	return New(
		scoring.NewScorer(),
		advisor,
		decision.NewAuthority(),
		offer.NewCalculator(),
		overrides,
		repo,
		nil,
		testLogger(),
	)
}

func strongMerchant() *domain.MerchantProfile {
	return &domain.MerchantProfile{
		ID:                 "m-strong",
		BusinessName:       "Fresh Greens",
		Category:           "Grocery",
		MonthlyRevenue:     90000,
		CreditScore:        820,
		YearsInBusiness:    6,
		ExistingLoans:      1,
		MonthlyGMV:         []float64{400000, 450000, 420000},
		RefundRate:         0.02,
		ChargebackRate:     0.01,
		CustomerReturnRate: 0.6,
		UniqueCustomers:    4500,
		SeasonalityIndex:   1.0,
	}
}

// failingAdvisor always errors, exercising the fallback path.
type failingAdvisor struct{ err error }

func (f *failingAdvisor) Recommend(ctx context.Context, m *domain.MerchantProfile, rp *domain.RiskProfile) (*domain.Recommendation, error) {
	return nil, f.err
}

func TestRunStrongMerchantApproved(t *testing.T) {
	repo := newTestRepo(t)
	pipe := newTestPipeline(t, repo, nil, nil)
	ctx := context.Background()

	d, err := pipe.Run(ctx, strongMerchant())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if d.Outcome != domain.OutcomeApproved {
		t.Errorf("expected APPROVED, got %s (%s)", d.Outcome, d.Rationale)
	}
	if d.Tier != domain.TierOne {
		t.Errorf("expected %s, got %s", domain.TierOne, d.Tier)
	}
	if d.Offer == nil || d.Offer.Credit == nil {
		t.Error("expected an offer on approval")
	}
	if d.AdvisorySource != "heuristic" {
		t.Errorf("expected heuristic source, got %q", d.AdvisorySource)
	}

	// Decision must be persisted.
	stored, err := repo.LatestDecision(ctx, "m-strong")
	if err != nil {
		t.Fatalf("LatestDecision failed: %v", err)
	}
	if stored.ID != d.ID {
		t.Errorf("expected persisted decision %s, got %s", d.ID, stored.ID)
	}
}

func TestRunFlooredMerchantRejected(t *testing.T) {
	repo := newTestRepo(t)
	pipe := newTestPipeline(t, repo, nil, nil)

	m := strongMerchant()
	m.ID = "m-floored"
	m.ChargebackRate = 0.20

	d, err := pipe.Run(context.Background(), m)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.Outcome != domain.OutcomeRejected {
		t.Errorf("expected REJECTED, got %s", d.Outcome)
	}
	if d.Offer != nil {
		t.Errorf("expected no offer on rejection, got %+v", d.Offer)
	}
}

func TestRunAdvisoryFallback(t *testing.T) {
	repo := newTestRepo(t)
	advisor := &failingAdvisor{err: &domain.AdvisoryUnavailable{Err: errors.New("connection refused")}}
	pipe := newTestPipeline(t, repo, advisor, nil)

	d, err := pipe.Run(context.Background(), strongMerchant())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Advisory failure degrades the rationale, never the outcome.
	if d.Outcome != domain.OutcomeApproved {
		t.Errorf("expected APPROVED despite advisor failure, got %s", d.Outcome)
	}
	if d.AdvisorySource != "fallback" {
		t.Errorf("expected fallback source, got %q", d.AdvisorySource)
	}
	if d.Rationale == "" {
		t.Error("expected a fallback rationale")
	}
}

func TestRunUnexpectedAdvisorErrorAlsoFallsBack(t *testing.T) {
	repo := newTestRepo(t)
	advisor := &failingAdvisor{err: errors.New("nil pointer somewhere")}
	pipe := newTestPipeline(t, repo, advisor, nil)

	d, err := pipe.Run(context.Background(), strongMerchant())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.AdvisorySource != "fallback" {
		t.Errorf("expected fallback source, got %q", d.AdvisorySource)
	}
}

func TestRunOverrideApplied(t *testing.T) {
	repo := newTestRepo(t)

	overrides, err := policy.NewEngine()
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	if err := overrides.LoadRule(&domain.OverrideRule{
		ID:         "embargo-grocery",
		Expression: `category == "Grocery"`,
		Outcome:    domain.OutcomeRejected,
		Reason:     "category under review",
		Priority:   10,
		Enabled:    true,
	}); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	pipe := newTestPipeline(t, repo, nil, overrides)

	d, err := pipe.Run(context.Background(), strongMerchant())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if d.Outcome != domain.OutcomeRejected {
		t.Errorf("expected overridden REJECTED, got %s", d.Outcome)
	}
	if d.ComputedOutcome != domain.OutcomeApproved {
		t.Errorf("expected computed APPROVED kept for audit, got %s", d.ComputedOutcome)
	}
	if d.OverrideRuleID != "embargo-grocery" {
		t.Errorf("expected override rule id on record, got %q", d.OverrideRuleID)
	}
	if d.Offer != nil {
		t.Error("expected no offer when override rejects")
	}
}

func TestRunInvalidMerchant(t *testing.T) {
	repo := newTestRepo(t)
	pipe := newTestPipeline(t, repo, nil, nil)

	m := &domain.MerchantProfile{ID: "m-invalid", CreditScore: 100}
	_, err := pipe.Run(context.Background(), m)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}
}
