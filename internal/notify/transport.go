package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// DeliveryResult is a successful transport response.
type DeliveryResult struct {
	ProviderID string
	Status     string
}

// Transport delivers a message to a destination. It may return a
// *ProviderError for classified provider failures or any other error for
// transport-level trouble; the dispatcher never lets either escape.
type Transport interface {
	Deliver(ctx context.Context, destination string, message string) (*DeliveryResult, error)
}

// HTTPTransport delivers through a Twilio-style messaging provider API.
type HTTPTransport struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

// NewHTTPTransport creates a transport for the configured provider.
func NewHTTPTransport(cfg domain.NotifyConfig) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    strings.TrimRight(cfg.ProviderURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type providerResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Deliver posts the message to the provider's Messages endpoint.
func (t *HTTPTransport) Deliver(ctx context.Context, destination string, message string) (*DeliveryResult, error) {
	if t.baseURL == "" {
		return nil, &ProviderError{Code: 20003, Message: "transport provider not configured"}
	}

	form := url.Values{}
	form.Set("From", t.from)
	form.Set("To", destination)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	if resp.StatusCode >= 400 {
		code := body.Code
		if code == 0 && resp.StatusCode == http.StatusTooManyRequests {
			code = 20429
		}
		return nil, &ProviderError{Code: code, Message: body.Message}
	}

	return &DeliveryResult{ProviderID: body.SID, Status: body.Status}, nil
}

var (
	formattingChars = regexp.MustCompile(`[\s\-\(\)\.]+`)
	inMobile        = regexp.MustCompile(`^[6-9]\d{9}$`)
	inWithCountry   = regexp.MustCompile(`^91\d{10}$`)
	nonDigits       = regexp.MustCompile(`\D`)
)

// NormalizeDestination converts a user-entered phone number into a
// "whatsapp:+E.164" channel address. Returns "" when the number is too
// short to be valid, which the monitor treats as no usable destination.
func NormalizeDestination(raw string) string {
	num := strings.TrimSpace(raw)

	if strings.HasPrefix(strings.ToLower(num), "whatsapp:") {
		num = strings.TrimSpace(num[len("whatsapp:"):])
	}
	num = formattingChars.ReplaceAllString(num, "")

	switch {
	case inMobile.MatchString(num):
		num = "+91" + num
	case inWithCountry.MatchString(num):
		num = "+" + num
	case num != "" && !strings.HasPrefix(num, "+"):
		num = "+" + num
	}

	if len(nonDigits.ReplaceAllString(num, "")) < 7 {
		return ""
	}
	return "whatsapp:" + num
}
