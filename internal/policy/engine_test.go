package policy

import (
	"testing"

	"github.com/opensource-finance/harrier/internal/domain"
)

func rule(id, expression string, priority int) *domain.OverrideRule {
	return &domain.OverrideRule{
		ID:         id,
		Expression: expression,
		Outcome:    domain.OutcomeRejected,
		Reason:     "rule " + id + " matched",
		Priority:   priority,
		Enabled:    true,
	}
}

func merchant() *domain.MerchantProfile {
	return &domain.MerchantProfile{
		ID:             "m-001",
		Category:       "Electronics",
		CreditScore:    700,
		MonthlyRevenue: 50000,
		MonthlyGMV:     []float64{200000, 220000},
	}
}

func risk() *domain.RiskProfile {
	return &domain.RiskProfile{
		MerchantID: "m-001",
		Score:      60,
		Tier:       domain.TierTwo,
		Flags:      []string{domain.FlagHighRefundRate},
	}
}

func TestLoadRule(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := engine.LoadRule(rule("r1", `category == "Electronics"`, 10)); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadRuleRejectsInvalid(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	tests := []struct {
		name string
		rule *domain.OverrideRule
	}{
		{"BadSyntax", rule("r-syntax", `category ==`, 10)},
		{"UnknownVariable", rule("r-var", `merchant_name == "x"`, 10)},
		{"NonBoolExpression", rule("r-type", `credit_score + 1`, 10)},
		{"UnknownOutcome", &domain.OverrideRule{
			ID: "r-outcome", Expression: `true`, Outcome: "MAYBE", Enabled: true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := engine.LoadRule(tt.rule); err == nil {
				t.Error("expected load to fail")
			}
			if err := engine.ValidateRule(tt.rule); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}

	if engine.RulesCount() != 0 {
		t.Errorf("expected no rules loaded, got %d", engine.RulesCount())
	}
}

func TestEvaluateMatch(t *testing.T) {
	engine, _ := NewEngine()
	r := rule("embargo-electronics", `category == "Electronics"`, 10)
	if err := engine.LoadRule(r); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	override := engine.Evaluate(merchant(), risk())
	if override == nil {
		t.Fatal("expected an override")
	}
	if override.RuleID != "embargo-electronics" {
		t.Errorf("expected embargo-electronics, got %s", override.RuleID)
	}
	if override.Outcome != domain.OutcomeRejected {
		t.Errorf("expected REJECTED, got %s", override.Outcome)
	}
	if override.Reason != r.Reason {
		t.Errorf("expected reason %q, got %q", r.Reason, override.Reason)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	engine, _ := NewEngine()
	if err := engine.LoadRule(rule("r1", `category == "Gambling"`, 10)); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if override := engine.Evaluate(merchant(), risk()); override != nil {
		t.Errorf("expected no override, got %+v", override)
	}
}

func TestEvaluatePriorityOrder(t *testing.T) {
	engine, _ := NewEngine()
	if err := engine.LoadRules([]*domain.OverrideRule{
		rule("low-priority", `true`, 50),
		rule("high-priority", `true`, 10),
	}); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	override := engine.Evaluate(merchant(), risk())
	if override == nil {
		t.Fatal("expected an override")
	}
	if override.RuleID != "high-priority" {
		t.Errorf("expected high-priority to match first, got %s", override.RuleID)
	}
}

func TestEvaluateVariables(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"Score", `score >= 50 && score < 75`},
		{"Tier", `tier == "TIER_2"`},
		{"Flags", `"HIGH_REFUND_RATE" in flags`},
		{"CreditScore", `credit_score == 700`},
		{"AvgGMV", `avg_monthly_gmv > 200000.0`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := NewEngine()
			if err := engine.LoadRule(rule("r1", tt.expression, 10)); err != nil {
				t.Fatalf("failed to load rule: %v", err)
			}
			if override := engine.Evaluate(merchant(), risk()); override == nil {
				t.Errorf("expected expression %q to match", tt.expression)
			}
		})
	}
}

func TestDisabledRulesSkipped(t *testing.T) {
	engine, _ := NewEngine()
	disabled := rule("r-disabled", `true`, 10)
	disabled.Enabled = false

	if err := engine.LoadRules([]*domain.OverrideRule{disabled}); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("expected disabled rule skipped, got %d loaded", engine.RulesCount())
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine()
	if err := engine.LoadRules([]*domain.OverrideRule{
		rule("r1", `true`, 10),
		rule("r2", `true`, 20),
	}); err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	if err := engine.ReloadRules([]*domain.OverrideRule{rule("r3", `false`, 10)}); err != nil {
		t.Fatalf("failed to reload rules: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
	if override := engine.Evaluate(merchant(), risk()); override != nil {
		t.Errorf("expected old rules gone, got %+v", override)
	}
}
