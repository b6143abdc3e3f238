package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport plays back a scripted sequence of results; the last entry
// repeats once the script runs out.
type fakeTransport struct {
	script []error
	calls  int
	panics bool
}

func (f *fakeTransport) Deliver(ctx context.Context, destination, message string) (*DeliveryResult, error) {
	f.calls++
	if f.panics {
		panic("transport blew up")
	}
	idx := f.calls - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	if err := f.script[idx]; err != nil {
		return nil, err
	}
	return &DeliveryResult{ProviderID: "SM123", Status: "queued"}, nil
}

func newTestDispatcher(transport Transport) *Dispatcher {
	return NewDispatcher(transport, time.Millisecond, testLogger())
}

func TestSendDelivered(t *testing.T) {
	transport := &fakeTransport{script: []error{nil}}
	d := newTestDispatcher(transport)

	outcome := d.Send(context.Background(), "m-001", "whatsapp:+919876543210", "hello")
	if outcome.Status != domain.NotifyDelivered {
		t.Fatalf("expected DELIVERED, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.ProviderID != "SM123" {
		t.Errorf("expected provider id SM123, got %q", outcome.ProviderID)
	}
	if outcome.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", outcome.Attempts)
	}
	if outcome.ID == "" || outcome.MerchantID != "m-001" {
		t.Error("outcome must carry identity")
	}
}

func TestSendTerminalFailureNoRetry(t *testing.T) {
	transport := &fakeTransport{script: []error{&ProviderError{Code: 21211, Message: "bad number"}}}
	d := newTestDispatcher(transport)

	outcome := d.Send(context.Background(), "m-001", "whatsapp:+91000", "hello")
	if outcome.Status != domain.NotifyFailed {
		t.Fatalf("expected FAILED, got %s", outcome.Status)
	}
	if outcome.Attempts != 1 {
		t.Errorf("expected no retry on terminal failure, got %d attempts", outcome.Attempts)
	}
	if transport.calls != 1 {
		t.Errorf("expected 1 transport call, got %d", transport.calls)
	}
	if !strings.Contains(outcome.Reason, "21211") {
		t.Errorf("expected provider code in reason, got %q", outcome.Reason)
	}
}

func TestSendTransientRetriesThenSucceeds(t *testing.T) {
	transport := &fakeTransport{script: []error{
		errors.New("connection reset"),
		nil,
	}}
	d := newTestDispatcher(transport)

	outcome := d.Send(context.Background(), "m-001", "whatsapp:+919876543210", "hello")
	if outcome.Status != domain.NotifyDelivered {
		t.Fatalf("expected DELIVERED after retry, got %s (%s)", outcome.Status, outcome.Reason)
	}
	if outcome.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", outcome.Attempts)
	}
}

func TestSendTransientExhausted(t *testing.T) {
	transport := &fakeTransport{script: []error{errors.New("timeout")}}
	d := newTestDispatcher(transport)

	outcome := d.Send(context.Background(), "m-001", "whatsapp:+919876543210", "hello")
	if outcome.Status != domain.NotifyFailed {
		t.Fatalf("expected FAILED, got %s", outcome.Status)
	}
	if outcome.Attempts != maxRetries+1 {
		t.Errorf("expected %d attempts, got %d", maxRetries+1, outcome.Attempts)
	}
	if !strings.Contains(outcome.Reason, "exhausted") {
		t.Errorf("expected exhausted reason, got %q", outcome.Reason)
	}
}

func TestSendRateLimitShortCircuitsCycle(t *testing.T) {
	transport := &fakeTransport{script: []error{&ProviderError{Code: 20429, Message: "slow down"}}}
	d := newTestDispatcher(transport)

	first := d.Send(context.Background(), "m-001", "whatsapp:+919876543210", "hello")
	if first.Status != domain.NotifyFailed {
		t.Fatalf("expected FAILED on rate limit, got %s", first.Status)
	}
	if !d.RateLimited() {
		t.Fatal("expected dispatcher to record rate limiting")
	}

	second := d.Send(context.Background(), "m-002", "whatsapp:+919876543211", "hello")
	if second.Status != domain.NotifySkipped {
		t.Fatalf("expected SKIPPED, got %s", second.Status)
	}
	if second.Reason != domain.ReasonRateLimited {
		t.Errorf("expected %s, got %q", domain.ReasonRateLimited, second.Reason)
	}
	if second.Attempts != 0 {
		t.Errorf("expected no attempts when skipped, got %d", second.Attempts)
	}
	if transport.calls != 1 {
		t.Errorf("expected provider untouched after rate limit, got %d calls", transport.calls)
	}

	// A new cycle clears the short-circuit.
	d.ResetCycle()
	if d.RateLimited() {
		t.Error("expected rate-limit flag cleared after cycle reset")
	}
}

func TestSendTransportPanicIsTransient(t *testing.T) {
	transport := &fakeTransport{panics: true}
	d := newTestDispatcher(transport)

	outcome := d.Send(context.Background(), "m-001", "whatsapp:+919876543210", "hello")
	if outcome.Status != domain.NotifyFailed {
		t.Fatalf("expected FAILED, got %s", outcome.Status)
	}
	if outcome.Attempts != maxRetries+1 {
		t.Errorf("expected panics retried as transient, got %d attempts", outcome.Attempts)
	}
	if !strings.Contains(outcome.Reason, "transport panic") {
		t.Errorf("expected panic in reason, got %q", outcome.Reason)
	}
}

func TestSendCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := &fakeTransport{script: []error{errors.New("timeout")}}
	d := NewDispatcher(transport, time.Minute, testLogger())

	outcome := d.Send(ctx, "m-001", "whatsapp:+919876543210", "hello")
	if outcome.Status != domain.NotifyFailed {
		t.Fatalf("expected FAILED, got %s", outcome.Status)
	}
	if outcome.Attempts != 1 {
		t.Errorf("expected retry abandoned on cancel, got %d attempts", outcome.Attempts)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected FailureClass
	}{
		{"TerminalCode", &ProviderError{Code: 21614, Message: "invalid"}, ClassTerminal},
		{"RateLimitCode", &ProviderError{Code: 63018, Message: "quota"}, ClassRateLimited},
		{"UnknownProviderCode", &ProviderError{Code: 99999, Message: "???"}, ClassTransient},
		{"PlainError", errors.New("dial tcp: refused"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, reason := Classify(tt.err)
			if class != tt.expected {
				t.Errorf("expected class %d, got %d", tt.expected, class)
			}
			if reason == "" {
				t.Error("expected a reason")
			}
		})
	}
}

func TestNormalizeDestination(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"IndianMobile", "9876543210", "whatsapp:+919876543210"},
		{"WithCountryCode", "919876543210", "whatsapp:+919876543210"},
		{"AlreadyE164", "+919876543210", "whatsapp:+919876543210"},
		{"WhatsappPrefix", "whatsapp:+919876543210", "whatsapp:+919876543210"},
		{"FormattingChars", "98765 432-10", "whatsapp:+919876543210"},
		{"ForeignNumber", "+14155552671", "whatsapp:+14155552671"},
		{"TooShort", "12345", ""},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDestination(tt.raw); got != tt.expected {
				t.Errorf("NormalizeDestination(%q) = %q, want %q", tt.raw, got, tt.expected)
			}
		})
	}
}
