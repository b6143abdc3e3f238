package domain

import (
	"fmt"
)

// ValidationError marks a malformed merchant profile. It is fatal to that
// merchant's cycle item only; the cycle continues.
type ValidationError struct {
	MerchantID string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid merchant profile %s: %v", e.MerchantID, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AdvisoryUnavailable marks an advisory call failure or timeout. It is
// recovered locally by the pipeline via the fallback rationale, never fatal.
type AdvisoryUnavailable struct {
	Err error
}

func (e *AdvisoryUnavailable) Error() string {
	return fmt.Sprintf("advisory unavailable: %v", e.Err)
}

func (e *AdvisoryUnavailable) Unwrap() error { return e.Err }

// PersistenceError marks a store write failure. Surfaced to the cycle
// caller as a failed item; the monitor continues with remaining merchants.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
