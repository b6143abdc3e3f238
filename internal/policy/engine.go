// Package policy provides the CEL-based override rule engine. Override
// rules let operators replace a computed outcome (for pilots, embargoed
// categories, regulatory holds) while keeping the computed value on the
// decision record for audit.
package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Engine evaluates compiled override rules against scored merchants.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.OverrideRule
	Program cel.Program
}

// NewEngine creates an override rule engine.
func NewEngine() (*Engine, error) {
	// CEL environment exposing merchant and risk variables
	env, err := cel.NewEnv(
		cel.Variable("merchant_id", cel.StringType),
		cel.Variable("category", cel.StringType),
		cel.Variable("credit_score", cel.IntType),
		cel.Variable("monthly_revenue", cel.DoubleType),
		cel.Variable("years_in_business", cel.IntType),
		cel.Variable("existing_loans", cel.IntType),
		cel.Variable("past_defaults", cel.IntType),
		cel.Variable("chargeback_rate", cel.DoubleType),
		cel.Variable("refund_rate", cel.DoubleType),
		cel.Variable("avg_monthly_gmv", cel.DoubleType),
		cel.Variable("score", cel.IntType),
		cel.Variable("tier", cel.StringType),
		cel.Variable("flags", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles and validates a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.OverrideRule) error {
	if cfg == nil {
		return fmt.Errorf("override rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.OverrideRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.OverrideRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.OverrideRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Evaluate runs the loaded rules against a scored merchant in priority
// order and returns the first match as an override, or nil when no rule
// matches. A rule that fails to evaluate is skipped, never matched.
func (e *Engine) Evaluate(m *domain.MerchantProfile, rp *domain.RiskProfile) *domain.Override {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, r := range e.compiledRules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Config.Priority != rules[j].Config.Priority {
			return rules[i].Config.Priority < rules[j].Config.Priority
		}
		return rules[i].Config.ID < rules[j].Config.ID
	})

	flags := make([]string, len(rp.Flags))
	copy(flags, rp.Flags)

	activation := map[string]any{
		"merchant_id":       m.ID,
		"category":          m.Category,
		"credit_score":      int64(m.CreditScore),
		"monthly_revenue":   m.MonthlyRevenue,
		"years_in_business": int64(m.YearsInBusiness),
		"existing_loans":    int64(m.ExistingLoans),
		"past_defaults":     int64(m.PastDefaults),
		"chargeback_rate":   m.ChargebackRate,
		"refund_rate":       m.RefundRate,
		"avg_monthly_gmv":   m.AvgMonthlyGMV(),
		"score":             int64(rp.Score),
		"tier":              string(rp.Tier),
		"flags":             flags,
	}

	for _, rule := range rules {
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			return &domain.Override{
				RuleID:  rule.Config.ID,
				Outcome: rule.Config.Outcome,
				Reason:  rule.Config.Reason,
			}
		}
	}

	return nil
}

func (e *Engine) compileRule(cfg *domain.OverrideRule) (*CompiledRule, error) {
	switch cfg.Outcome {
	case domain.OutcomeApproved, domain.OutcomeConditions, domain.OutcomeRejected:
	default:
		return nil, fmt.Errorf("rule %s: unknown outcome %q", cfg.ID, cfg.Outcome)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
