package domain

import (
	"time"
)

// EngineState is the monitor's run state. It starts IDLE, moves to
// RUNNING_CONTINUOUS when the continuous loop is enabled, and returns to
// IDLE on disable or a fatal scheduler error. The persisted value is read
// at startup but never auto-resumed into RUNNING_CONTINUOUS.
type EngineState string

const (
	StateIdle       EngineState = "IDLE"
	StateContinuous EngineState = "RUNNING_CONTINUOUS"
)

// Cycle item actions.
const (
	CycleProcessed = "processed"
	CycleSkipped   = "skipped"
	CycleErrored   = "error"
)

// CycleItem is the per-merchant breakdown entry of a cycle.
type CycleItem struct {
	MerchantID   string  `json:"merchantId"`
	Action       string  `json:"action"` // processed, skipped, error
	Outcome      Outcome `json:"outcome,omitempty"`
	NotifyStatus string  `json:"notifyStatus,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// CycleSummary is the aggregate snapshot of the most recent monitor cycle.
// Exactly one summary exists at a time; each cycle overwrites it.
type CycleSummary struct {
	CycleID    string    `json:"cycleId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Processed int `json:"processed"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Notified  int `json:"notified"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`

	// RateLimited is set when a rate-limit terminal code short-circuited
	// the remainder of the cycle's deliveries.
	RateLimited bool `json:"rateLimited"`

	Items []CycleItem `json:"items,omitempty"`
}
