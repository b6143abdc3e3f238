package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/monitor"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/policy"
	"github.com/opensource-finance/harrier/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *monitor.Engine
	pipeline  *pipeline.Pipeline
	overrides *policy.Engine
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *monitor.Engine, pipe *pipeline.Pipeline, overrides *policy.Engine, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		pipeline:  pipe,
		overrides: overrides,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// RunOnce handles POST /engine/run: a single synchronous monitoring cycle.
func (h *Handler) RunOnce(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.RunOnce(r.Context())
	if err != nil {
		slog.Error("manual cycle failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "cycle failed: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// EnableContinuous handles POST /engine/continuous.
func (h *Handler) EnableContinuous(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.EnableContinuous(r.Context()); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"state": string(domain.StateContinuous),
	})
}

// DisableContinuous handles DELETE /engine/continuous.
func (h *Handler) DisableContinuous(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Disable(r.Context()); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"state": string(domain.StateIdle),
	})
}

// ClearCache handles POST /engine/cache/clear: wipes fingerprints and
// notification statuses so the next cycle reprocesses everything.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.engine.ClearCache(r.Context())
	if err != nil {
		slog.Error("cache clear failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "cache clear failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fingerprintsDeleted": deleted,
	})
}

// EngineStatus handles GET /engine/status.
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"state":          h.engine.State(),
		"persistedState": h.engine.StartupState(r.Context()),
		"version":        h.version,
	})
}

// LastSummary handles GET /engine/summary.
func (h *Handler) LastSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.LastSummary(r.Context())
	if err != nil {
		slog.Error("failed to load last cycle summary", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load summary",
		})
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no cycle has completed yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// TestDestinationRequest is the request body for POST /engine/test-destination.
type TestDestinationRequest struct {
	Enabled     bool   `json:"enabled"`
	Destination string `json:"destination"`
}

// SetTestDestination handles POST /engine/test-destination: when enabled,
// every notification is rerouted to the given destination (for staging).
func (h *Handler) SetTestDestination(w http.ResponseWriter, r *http.Request) {
	var req TestDestinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Enabled && req.Destination == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "destination is required when enabled",
		})
		return
	}

	ctx := r.Context()
	enabled := "false"
	if req.Enabled {
		enabled = "true"
	}
	if err := h.repo.SetConfig(ctx, domain.ConfigKeyTestDestEnabled, enabled); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save test destination",
		})
		return
	}
	if err := h.repo.SetConfig(ctx, domain.ConfigKeyTestDestination, req.Destination); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save test destination",
		})
		return
	}

	slog.Info("test destination updated", "enabled", req.Enabled)
	writeJSON(w, http.StatusOK, req)
}

// SaveMerchant handles POST /merchants: upserts a merchant profile.
func (h *Handler) SaveMerchant(w http.ResponseWriter, r *http.Request) {
	var m domain.MerchantProfile
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.SecureToken == "" {
		m.SecureToken = uuid.New().String()
	}

	if err := m.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveMerchant(r.Context(), &m); err != nil {
		slog.Error("failed to save merchant", "merchant_id", m.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save merchant",
		})
		return
	}

	writeJSON(w, http.StatusCreated, &m)
}

// ListMerchants handles GET /merchants.
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	merchants, err := h.repo.ListMerchants(r.Context())
	if err != nil {
		slog.Error("failed to list merchants", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list merchants",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"merchants": merchants,
		"count":     len(merchants),
	})
}

// GetMerchant handles GET /merchants/{id}.
func (h *Handler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.repo.GetMerchant(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "merchant not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get merchant", "merchant_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get merchant",
		})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// EvaluateMerchant handles POST /merchants/{id}/evaluate: runs a single
// merchant through the pipeline immediately, bypassing change detection.
func (h *Handler) EvaluateMerchant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	m, err := h.repo.GetMerchant(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "merchant not found",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get merchant",
		})
		return
	}

	d, err := h.pipeline.Run(ctx, m)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": ve.Error(),
			})
			return
		}
		slog.Error("evaluation failed", "merchant_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// LatestDecision handles GET /merchants/{id}/decision.
func (h *Handler) LatestDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.repo.LatestDecision(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no decision on record",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get decision",
		})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListDecisions handles GET /merchants/{id}/decisions.
func (h *Handler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	decisions, err := h.repo.ListDecisions(r.Context(), id, 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// LatestNotification handles GET /merchants/{id}/notification.
func (h *Handler) LatestNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, err := h.repo.LatestNotificationOutcome(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no notification on record",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get notification",
		})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ListOverrides handles GET /overrides.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.ListOverrideRules(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list override rules",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  rules,
		"count":  len(rules),
		"loaded": h.overrides.RulesCount(),
	})
}

// CreateOverrideRequest is the request body for POST /overrides.
type CreateOverrideRequest struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Expression string         `json:"expression"`
	Outcome    domain.Outcome `json:"outcome"`
	Reason     string         `json:"reason"`
	Priority   int            `json:"priority"`
	Enabled    bool           `json:"enabled"`
}

// CreateOverride handles POST /overrides: validates the CEL expression,
// persists the rule, and loads it into the running engine.
func (h *Handler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	rule := &domain.OverrideRule{
		ID:         req.ID,
		Name:       req.Name,
		Expression: req.Expression,
		Outcome:    req.Outcome,
		Reason:     req.Reason,
		Priority:   req.Priority,
		Enabled:    req.Enabled,
	}

	if err := h.overrides.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveOverrideRule(ctx, rule); err != nil {
		slog.Error("failed to save override rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	if rule.Enabled {
		if err := h.overrides.LoadRule(rule); err != nil {
			slog.Error("failed to load override rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("override rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// DeleteOverride handles DELETE /overrides/{id}: removes the rule from
// the store and reloads the engine without it.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteOverrideRule(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	if err := h.reloadOverrides(ctx); err != nil {
		slog.Error("failed to reload override rules after delete", "error", err)
	}

	slog.Info("override rule deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ReloadOverrides handles POST /overrides/reload: hot-reloads all rules
// from the database into the engine.
func (h *Handler) ReloadOverrides(w http.ResponseWriter, r *http.Request) {
	if err := h.reloadOverrides(r.Context()); err != nil {
		slog.Error("failed to reload override rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	count := h.overrides.RulesCount()
	slog.Info("override rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) reloadOverrides(ctx context.Context) error {
	rules, err := h.repo.ListOverrideRules(ctx)
	if err != nil {
		return err
	}
	return h.overrides.ReloadRules(rules)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
