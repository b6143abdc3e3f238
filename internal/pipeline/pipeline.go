// Package pipeline runs a merchant through the full underwriting flow:
// score, advise, decide, attach offer, persist. Every stage transition
// is logged; the advisory stage is the only one allowed to degrade.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harrier/internal/advisory"
	"github.com/opensource-finance/harrier/internal/decision"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/offer"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/scoring"
)

var tracer = otel.Tracer("harrier-pipeline")

// Stage names, logged as each merchant moves through the flow.
const (
	StageScoring   = "SCORING"
	StageAdvising  = "ADVISING"
	StageDeciding  = "DECIDING"
	StageOffering  = "OFFERING"
	StagePersisted = "PERSISTED"
)

// advisoryTimeout bounds the advisory call so a slow advisor cannot
// stall a cycle. On expiry the pipeline proceeds with the fallback
// rationale.
const advisoryTimeout = 15 * time.Second

// Pipeline orchestrates the underwriting stages for one merchant at a
// time. It is safe for concurrent use.
type Pipeline struct {
	scorer     *scoring.Scorer
	advisor    advisory.Advisor
	authority  *decision.Authority
	calculator *offer.Calculator
	overrides  *policy.Engine
	repo       domain.Repository
	bus        domain.EventBus
	logger     *slog.Logger
}

// New creates a pipeline. The override engine and bus may be nil, in
// which case override evaluation and event publication are skipped.
func New(
	scorer *scoring.Scorer,
	advisor advisory.Advisor,
	authority *decision.Authority,
	calculator *offer.Calculator,
	overrides *policy.Engine,
	repo domain.Repository,
	bus domain.EventBus,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		scorer:     scorer,
		advisor:    advisor,
		authority:  authority,
		calculator: calculator,
		overrides:  overrides,
		repo:       repo,
		bus:        bus,
		logger:     logger,
	}
}

// Run takes a merchant through every stage and returns the persisted
// decision. It fails only on invalid input or a persistence error;
// advisory trouble degrades to the fallback rationale instead.
func (p *Pipeline) Run(ctx context.Context, m *domain.MerchantProfile) (*domain.Decision, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("merchant.id", m.ID)))
	defer span.End()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	log := p.logger.With("merchant_id", m.ID)
	metrics.MerchantsProcessed.Inc()

	log.Debug("stage transition", "stage", StageScoring)
	risk := p.scorer.Score(m)
	span.SetAttributes(
		attribute.Int("risk.score", risk.Score),
		attribute.String("risk.tier", string(risk.Tier)),
	)

	log.Debug("stage transition", "stage", StageAdvising)
	rec := p.advise(ctx, m, risk, log)

	log.Debug("stage transition", "stage", StageDeciding)
	var override *domain.Override
	if p.overrides != nil {
		override = p.overrides.Evaluate(m, risk)
		if override != nil {
			log.Info("override rule matched",
				"rule_id", override.RuleID,
				"outcome", override.Outcome)
		}
	}

	d := p.authority.Decide(&decision.Input{
		Merchant:          m,
		Risk:              risk,
		Recommendation:    rec,
		FallbackRationale: advisory.FallbackRationale(m, risk),
		Override:          override,
	})

	log.Debug("stage transition", "stage", StageOffering)
	if d.Approved() {
		d.Offer = p.calculator.Calculate(risk.Tier, m)
	}

	if err := p.repo.SaveDecision(ctx, d); err != nil {
		return nil, &domain.PersistenceError{Op: "save decision", Err: err}
	}
	log.Info("stage transition",
		"stage", StagePersisted,
		"decision_id", d.ID,
		"outcome", d.Outcome,
		"tier", d.Tier,
		"score", d.Score)
	metrics.DecisionsTotal.WithLabelValues(string(d.Outcome)).Inc()

	p.publishDecision(ctx, d)
	return d, nil
}

// advise calls the advisor under a bounded timeout. Any failure or
// expiry yields a nil recommendation; the authority substitutes the
// deterministic fallback rationale without changing the outcome merge.
func (p *Pipeline) advise(ctx context.Context, m *domain.MerchantProfile, rp *domain.RiskProfile, log *slog.Logger) *domain.Recommendation {
	actx, cancel := context.WithTimeout(ctx, advisoryTimeout)
	defer cancel()

	rec, err := p.advisor.Recommend(actx, m, rp)
	if err != nil {
		var unavailable *domain.AdvisoryUnavailable
		if !errors.As(err, &unavailable) {
			log.Warn("advisory returned unexpected error", "error", err)
		} else {
			log.Warn("advisory unavailable, using fallback rationale", "error", err)
		}
		metrics.AdvisoryFallbacks.Inc()
		return nil
	}
	return rec
}

func (p *Pipeline) publishDecision(ctx context.Context, d *domain.Decision) {
	if p.bus == nil {
		return
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := p.bus.Publish(ctx, domain.TopicDecisionCreated, payload); err != nil {
		p.logger.Warn("failed to publish decision event",
			"decision_id", d.ID,
			"error", err)
	}
}
