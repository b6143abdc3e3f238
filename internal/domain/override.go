package domain

import (
	"time"
)

// OverrideRule is an admin-defined policy rule. Its CEL expression is
// evaluated against the merchant and risk profile; when it matches, the
// decision authority replaces the computed outcome with Outcome and records
// the computed one for audit.
type OverrideRule struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Expression string  `json:"expression"` // CEL, must return bool
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason"`

	// Priority orders evaluation; lower evaluates first. First match wins.
	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
