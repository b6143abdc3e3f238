package domain

import (
	"time"
)

// Notification delivery statuses.
const (
	NotifyDelivered = "DELIVERED"
	NotifyFailed    = "FAILED"
	NotifySkipped   = "SKIPPED"
)

// Well-known skip/failure reasons recorded on outcomes.
const (
	ReasonRejected      = "decision rejected"
	ReasonNoDestination = "no usable destination"
	ReasonRateLimited   = "rate limited"
)

// NotificationOutcome records one dispatch attempt's result. Outcomes are
// appended per attempt; a merchant's current status is the latest outcome.
type NotificationOutcome struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchantId"`

	// Destination is the normalized channel address the dispatch targeted.
	// Empty for skips caused by a missing destination.
	Destination string `json:"destination,omitempty"`

	Status string `json:"status"` // DELIVERED, FAILED, SKIPPED
	Reason string `json:"reason,omitempty"`

	// ProviderID is the transport provider's message identifier, when
	// delivery reached the provider.
	ProviderID string `json:"providerId,omitempty"`

	// Attempts counts transport calls made for this dispatch (0 for skips).
	Attempts int `json:"attempts"`

	CreatedAt time.Time `json:"createdAt"`
}

// Delivered reports whether the outcome represents a successful delivery.
func (n *NotificationOutcome) Delivered() bool {
	return n.Status == NotifyDelivered
}
