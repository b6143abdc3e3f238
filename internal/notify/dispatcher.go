// Package notify delivers underwriting results to merchants over a
// Twilio-style messaging provider. The dispatcher owns retry and
// rate-limit policy; failure classification lives in the code table.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
)

// maxRetries bounds transient retries. A delivery gets the initial
// attempt plus this many retries.
const maxRetries = 2

// Dispatcher sends notifications and absorbs every failure into a
// recorded outcome. Send never returns an error; a delivery problem is
// data, not a reason to abort the caller's cycle.
type Dispatcher struct {
	transport  Transport
	retryDelay time.Duration
	logger     *slog.Logger

	mu          sync.Mutex
	rateLimited bool
}

// NewDispatcher creates a dispatcher over the given transport.
func NewDispatcher(transport Transport, retryDelay time.Duration, logger *slog.Logger) *Dispatcher {
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Dispatcher{
		transport:  transport,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// ResetCycle clears the rate-limit short-circuit. The monitor calls
// this at the start of every cycle so a prior cycle's rate limiting
// never suppresses the next one.
func (d *Dispatcher) ResetCycle() {
	d.mu.Lock()
	d.rateLimited = false
	d.mu.Unlock()
}

// RateLimited reports whether the current cycle hit a provider rate
// limit.
func (d *Dispatcher) RateLimited() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rateLimited
}

// Send delivers a message and always returns an outcome. Once a
// rate-limit failure is seen, the remaining sends in the cycle are
// skipped without touching the provider.
func (d *Dispatcher) Send(ctx context.Context, merchantID, destination, message string) *domain.NotificationOutcome {
	outcome := &domain.NotificationOutcome{
		ID:          uuid.New().String(),
		MerchantID:  merchantID,
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
	}

	d.mu.Lock()
	limited := d.rateLimited
	d.mu.Unlock()
	if limited {
		outcome.Status = domain.NotifySkipped
		outcome.Reason = domain.ReasonRateLimited
		metrics.NotificationsTotal.WithLabelValues(outcome.Status).Inc()
		return outcome
	}

	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		outcome.Attempts = attempt

		result, err := d.deliver(ctx, destination, message)
		if err == nil {
			outcome.Status = domain.NotifyDelivered
			outcome.ProviderID = result.ProviderID
			d.logger.Info("notification delivered",
				"merchant_id", merchantID,
				"provider_id", result.ProviderID,
				"attempts", attempt)
			metrics.NotificationsTotal.WithLabelValues(outcome.Status).Inc()
			return outcome
		}

		class, reason := Classify(err)
		switch class {
		case ClassTerminal:
			outcome.Status = domain.NotifyFailed
			outcome.Reason = reason
			d.logger.Warn("notification failed",
				"merchant_id", merchantID,
				"reason", reason)
			metrics.NotificationsTotal.WithLabelValues(outcome.Status).Inc()
			return outcome

		case ClassRateLimited:
			d.mu.Lock()
			d.rateLimited = true
			d.mu.Unlock()
			outcome.Status = domain.NotifyFailed
			outcome.Reason = reason
			d.logger.Warn("notification rate limited, suppressing remainder of cycle",
				"merchant_id", merchantID,
				"reason", reason)
			metrics.NotificationsTotal.WithLabelValues(outcome.Status).Inc()
			return outcome
		}

		// transient
		if attempt <= maxRetries {
			d.logger.Debug("notification attempt failed, retrying",
				"merchant_id", merchantID,
				"attempt", attempt,
				"error", err)
			select {
			case <-ctx.Done():
				outcome.Status = domain.NotifyFailed
				outcome.Reason = ctx.Err().Error()
				metrics.NotificationsTotal.WithLabelValues(outcome.Status).Inc()
				return outcome
			case <-time.After(d.retryDelay):
			}
			continue
		}

		outcome.Status = domain.NotifyFailed
		outcome.Reason = fmt.Sprintf("exhausted %d attempts: %s", attempt, reason)
		d.logger.Warn("notification failed after retries",
			"merchant_id", merchantID,
			"attempts", attempt,
			"reason", reason)
		metrics.NotificationsTotal.WithLabelValues(outcome.Status).Inc()
		return outcome
	}

	// unreachable, loop always returns
	return outcome
}

// deliver wraps the transport call so a panicking transport surfaces as
// an ordinary transient error instead of taking the cycle down.
func (d *Dispatcher) deliver(ctx context.Context, destination, message string) (result *DeliveryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return d.transport.Deliver(ctx, destination, message)
}
