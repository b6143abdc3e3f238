// Package monitor implements the agentic monitoring engine: a
// cycle-based scheduler that re-underwrites changed merchants and
// notifies them of the result without human intervention.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/fingerprint"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/notify"
	"github.com/opensource-finance/harrier/internal/pipeline"
)

// Engine drives monitoring cycles over the merchant base. At most one
// cycle runs at a time; manual runs and the continuous loop share the
// same mutex.
type Engine struct {
	pipeline     *pipeline.Pipeline
	fingerprints *fingerprint.Store
	dispatcher   *notify.Dispatcher
	repo         domain.Repository
	bus          domain.EventBus
	logger       *slog.Logger

	pollInterval time.Duration
	offerBaseURL string

	cycleMu sync.Mutex // serializes cycles

	mu    sync.Mutex // guards state transitions
	state domain.EngineState
	stop  chan struct{}
	done  chan struct{}
}

// NewEngine creates a monitor engine in the IDLE state. The previously
// persisted state is surfaced through StartupState for operators; the
// engine never auto-resumes continuous mode.
func NewEngine(
	p *pipeline.Pipeline,
	fps *fingerprint.Store,
	dispatcher *notify.Dispatcher,
	repo domain.Repository,
	bus domain.EventBus,
	cfg domain.MonitorConfig,
	logger *slog.Logger,
) *Engine {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Engine{
		pipeline:     p,
		fingerprints: fps,
		dispatcher:   dispatcher,
		repo:         repo,
		bus:          bus,
		logger:       logger,
		pollInterval: interval,
		offerBaseURL: cfg.OfferBaseURL,
		state:        domain.StateIdle,
	}
}

// State returns the engine's current run state.
func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StartupState reads the state persisted by a previous process. Used
// for the status endpoint so operators can see a continuous loop was
// active before a restart and re-enable it deliberately.
func (e *Engine) StartupState(ctx context.Context) domain.EngineState {
	stored, err := e.repo.GetConfig(ctx, domain.ConfigKeyEngineState, string(domain.StateIdle))
	if err != nil || stored == "" {
		return domain.StateIdle
	}
	return domain.EngineState(stored)
}

// RunOnce executes a single monitoring cycle synchronously. Fingerprints
// are left intact, so a second run over unchanged merchants skips all
// of them.
func (e *Engine) RunOnce(ctx context.Context) (*domain.CycleSummary, error) {
	metrics.CyclesTotal.WithLabelValues("manual").Inc()
	return e.runCycle(ctx)
}

// EnableContinuous clears all fingerprints and starts the polling loop.
// Clearing forces a full re-evaluation on the first cycle so the loop
// begins from a known-complete baseline.
func (e *Engine) EnableContinuous(ctx context.Context) error {
	e.mu.Lock()
	if e.state == domain.StateContinuous {
		e.mu.Unlock()
		return fmt.Errorf("continuous monitoring already enabled")
	}

	if _, err := e.fingerprints.ClearAll(ctx); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to clear fingerprints: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	e.stop = stop
	e.done = done
	e.state = domain.StateContinuous
	e.mu.Unlock()

	if err := e.repo.SetConfig(ctx, domain.ConfigKeyEngineState, string(domain.StateContinuous)); err != nil {
		e.logger.Warn("failed to persist engine state", "error", err)
	}

	e.logger.Info("continuous monitoring enabled", "poll_interval", e.pollInterval)
	go e.loop(stop, done)
	return nil
}

// Disable stops the continuous loop. An in-flight cycle finishes before
// this returns; no cycle is interrupted mid-merchant.
func (e *Engine) Disable(ctx context.Context) error {
	e.mu.Lock()
	if e.state != domain.StateContinuous {
		e.mu.Unlock()
		return fmt.Errorf("continuous monitoring is not enabled")
	}
	stop := e.stop
	done := e.done
	e.mu.Unlock()

	close(stop)
	<-done

	e.mu.Lock()
	e.state = domain.StateIdle
	e.stop = nil
	e.done = nil
	e.mu.Unlock()

	if err := e.repo.SetConfig(ctx, domain.ConfigKeyEngineState, string(domain.StateIdle)); err != nil {
		e.logger.Warn("failed to persist engine state", "error", err)
	}

	e.logger.Info("continuous monitoring disabled")
	return nil
}

// Shutdown stops the loop if running. Called on process shutdown.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	running := e.state == domain.StateContinuous
	e.mu.Unlock()
	if running {
		if err := e.Disable(ctx); err != nil {
			e.logger.Warn("failed to disable monitoring on shutdown", "error", err)
		}
	}
}

// ClearCache removes all fingerprints and resets merchant notification
// statuses. The engine state is untouched: a running loop keeps running
// and simply reprocesses everything next cycle.
func (e *Engine) ClearCache(ctx context.Context) (int64, error) {
	deleted, err := e.fingerprints.ClearAll(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := e.repo.ResetNotificationStatuses(ctx); err != nil {
		return deleted, &domain.PersistenceError{Op: "reset notification statuses", Err: err}
	}
	e.logger.Info("monitoring cache cleared", "fingerprints_deleted", deleted)
	return deleted, nil
}

// LastSummary returns the persisted summary of the most recent cycle,
// or nil when no cycle has completed yet.
func (e *Engine) LastSummary(ctx context.Context) (*domain.CycleSummary, error) {
	raw, err := e.repo.GetConfig(ctx, domain.ConfigKeyLastCycleSummary, "")
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var summary domain.CycleSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse last cycle summary: %w", err)
	}
	return &summary, nil
}

// loop runs cycles until stopped. Each cycle runs under its own
// background context and the stop signal is consulted only between
// cycles, so disabling never interrupts a cycle in flight and the
// in-flight summary is always persisted.
func (e *Engine) loop(stop, done chan struct{}) {
	defer close(done)

	for {
		metrics.CyclesTotal.WithLabelValues("continuous").Inc()
		if _, err := e.runCycle(context.Background()); err != nil {
			e.logger.Error("monitoring cycle failed", "error", err)
		}

		select {
		case <-stop:
			return
		case <-time.After(e.pollInterval):
		}
	}
}

// runCycle evaluates every merchant: skip unchanged ones, run the rest
// through the pipeline, dispatch notifications for approvals, commit
// fingerprints, and persist the cycle summary. Per-merchant errors are
// recorded and never abort the cycle.
func (e *Engine) runCycle(ctx context.Context) (*domain.CycleSummary, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	started := time.Now().UTC()
	summary := &domain.CycleSummary{
		CycleID:   uuid.New().String(),
		StartedAt: started,
	}
	log := e.logger.With("cycle_id", summary.CycleID)
	log.Info("monitoring cycle started")

	e.dispatcher.ResetCycle()

	merchants, err := e.repo.ListMerchants(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list merchants", Err: err}
	}

	testDest := e.testDestination(ctx)

	for _, m := range merchants {
		if ctx.Err() != nil {
			break
		}
		item := e.processMerchant(ctx, m, testDest, summary, log)
		summary.Items = append(summary.Items, item)
	}

	summary.FinishedAt = time.Now().UTC()
	summary.RateLimited = e.dispatcher.RateLimited()
	metrics.CycleDuration.Observe(summary.FinishedAt.Sub(started).Seconds())

	e.persistSummary(ctx, summary, log)
	e.publishSummary(ctx, summary)

	log.Info("monitoring cycle completed",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"notified", summary.Notified,
		"failed", summary.Failed,
		"rate_limited", summary.RateLimited,
		"duration", summary.FinishedAt.Sub(started))
	return summary, nil
}

func (e *Engine) processMerchant(ctx context.Context, m *domain.MerchantProfile, testDest string, summary *domain.CycleSummary, log *slog.Logger) domain.CycleItem {
	item := domain.CycleItem{MerchantID: m.ID}

	fp, err := fingerprint.Compute(m)
	if err != nil {
		summary.Failed++
		item.Action = domain.CycleErrored
		item.Error = err.Error()
		log.Error("fingerprint computation failed", "merchant_id", m.ID, "error", err)
		return item
	}

	changed, err := e.fingerprints.ShouldProcess(ctx, m.ID, fp)
	if err != nil {
		summary.Failed++
		item.Action = domain.CycleErrored
		item.Error = err.Error()
		log.Error("fingerprint lookup failed", "merchant_id", m.ID, "error", err)
		return item
	}

	if !changed {
		// Unchanged merchants are re-run only when they have no decision
		// on record, so a merchant added before a crash is never stranded.
		if prior, err := e.repo.LatestDecision(ctx, m.ID); err == nil && prior != nil {
			summary.Skipped++
			item.Action = domain.CycleSkipped
			log.Debug("merchant unchanged, skipping", "merchant_id", m.ID)
			return item
		}
	}

	d, err := e.pipeline.Run(ctx, m)
	if err != nil {
		summary.Failed++
		item.Action = domain.CycleErrored
		item.Error = err.Error()
		log.Error("pipeline run failed", "merchant_id", m.ID, "error", err)
		return item
	}

	summary.Processed++
	item.Action = domain.CycleProcessed
	item.Outcome = d.Outcome
	if d.Approved() {
		summary.Approved++
	} else {
		summary.Rejected++
	}

	outcome := e.dispatch(ctx, m, d, testDest)
	item.NotifyStatus = outcome.Status
	switch outcome.Status {
	case domain.NotifyDelivered:
		summary.Notified++
	case domain.NotifyFailed:
		summary.Failed++
	case domain.NotifySkipped:
		summary.Skipped++
	}

	if err := e.recordDispatch(ctx, m, outcome); err != nil {
		log.Warn("failed to record notification outcome", "merchant_id", m.ID, "error", err)
	}

	// Commit only after the full run so a crash forces reprocessing.
	if err := e.fingerprints.Commit(ctx, m.ID, fp); err != nil {
		log.Warn("failed to commit fingerprint", "merchant_id", m.ID, "error", err)
	}

	return item
}

// dispatch sends the decision notification, or produces a skip outcome
// for rejections and missing destinations without touching the provider.
func (e *Engine) dispatch(ctx context.Context, m *domain.MerchantProfile, d *domain.Decision, testDest string) *domain.NotificationOutcome {
	skip := func(reason string) *domain.NotificationOutcome {
		return &domain.NotificationOutcome{
			ID:         uuid.New().String(),
			MerchantID: m.ID,
			Status:     domain.NotifySkipped,
			Reason:     reason,
			CreatedAt:  time.Now().UTC(),
		}
	}

	if !d.Approved() {
		return skip(domain.ReasonRejected)
	}

	raw := m.ContactNumber
	if testDest != "" {
		raw = testDest
	}
	dest := notify.NormalizeDestination(raw)
	if dest == "" {
		return skip(domain.ReasonNoDestination)
	}

	message := notify.FormatUnderwritingResult(m, d, notify.OfferLink(e.offerBaseURL, m))
	outcome := e.dispatcher.Send(ctx, m.ID, dest, message)

	if e.bus != nil {
		if payload, err := json.Marshal(outcome); err == nil {
			_ = e.bus.Publish(ctx, domain.TopicNotificationDispatched, payload)
		}
	}
	return outcome
}

func (e *Engine) recordDispatch(ctx context.Context, m *domain.MerchantProfile, outcome *domain.NotificationOutcome) error {
	if err := e.repo.SaveNotificationOutcome(ctx, outcome); err != nil {
		return err
	}
	return e.repo.SetNotificationStatus(ctx, m.ID, outcome.Status)
}

// testDestination returns the configured test override destination when
// enabled, rerouting every notification to it (for staging).
func (e *Engine) testDestination(ctx context.Context) string {
	enabled, err := e.repo.GetConfig(ctx, domain.ConfigKeyTestDestEnabled, "false")
	if err != nil || enabled != "true" {
		return ""
	}
	dest, err := e.repo.GetConfig(ctx, domain.ConfigKeyTestDestination, "")
	if err != nil {
		return ""
	}
	return dest
}

func (e *Engine) persistSummary(ctx context.Context, summary *domain.CycleSummary, log *slog.Logger) {
	raw, err := json.Marshal(summary)
	if err != nil {
		log.Error("failed to serialize cycle summary", "error", err)
		return
	}
	if err := e.repo.SetConfig(ctx, domain.ConfigKeyLastCycleSummary, string(raw)); err != nil {
		log.Error("failed to persist cycle summary", "error", err)
	}
}

func (e *Engine) publishSummary(ctx context.Context, summary *domain.CycleSummary) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	_ = e.bus.Publish(ctx, domain.TopicCycleCompleted, payload)
}
