package notify

import (
	"errors"
	"fmt"
)

// FailureClass classifies a delivery failure.
type FailureClass int

const (
	// ClassTransient failures are retried up to the fixed bound.
	ClassTransient FailureClass = iota

	// ClassTerminal failures are returned immediately with no retry.
	ClassTerminal

	// ClassRateLimited is terminal and additionally short-circuits the
	// remainder of the cycle's deliveries.
	ClassRateLimited
)

// ProviderError is a classified error returned by the transport provider.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

type codeEntry struct {
	Class  FailureClass
	Reason string
}

// providerCodes maps known provider error codes to their classification
// and a human-readable reason. Unlisted codes are transient. New codes
// are additions to this table, not logic changes.
var providerCodes = map[int]codeEntry{
	20003: {ClassTerminal, "authentication failure, check account credentials"},
	20429: {ClassRateLimited, "provider rate limit exceeded"},
	21211: {ClassTerminal, "invalid destination number format"},
	21214: {ClassTerminal, "destination is not a mobile number"},
	21215: {ClassTerminal, "destination not enabled for messaging"},
	21408: {ClassTerminal, "sending to this region is not enabled"},
	21610: {ClassTerminal, "destination unsubscribed from messages"},
	21614: {ClassTerminal, "destination is not a valid mobile number"},
	63007: {ClassTerminal, "recipient has not joined the messaging channel"},
	63016: {ClassTerminal, "message blocked by content policy"},
	63018: {ClassRateLimited, "channel messaging quota exceeded"},
	63032: {ClassTerminal, "template required for first message to this user"},
}

// Classify maps a delivery error to its failure class and reason.
// Unknown provider codes and non-provider errors are transient.
func Classify(err error) (FailureClass, string) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if entry, ok := providerCodes[pe.Code]; ok {
			return entry.Class, fmt.Sprintf("[%d] %s", pe.Code, entry.Reason)
		}
		return ClassTransient, pe.Error()
	}
	return ClassTransient, err.Error()
}
