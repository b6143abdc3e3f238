package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensource-finance/harrier/internal/domain"
)

// HTTPAdvisor calls a remote advisory service. The service receives the
// merchant's risk context and returns a suggested outcome plus narrative.
type HTTPAdvisor struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPAdvisor creates an advisor for the configured endpoint.
func NewHTTPAdvisor(cfg domain.AdvisoryConfig) *HTTPAdvisor {
	return &HTTPAdvisor{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// advisoryRequest is the wire request to the advisory service.
type advisoryRequest struct {
	MerchantID      string             `json:"merchantId"`
	Category        string             `json:"category"`
	MonthlyRevenue  float64            `json:"monthlyRevenue"`
	CreditScore     int                `json:"creditScore"`
	YearsInBusiness int                `json:"yearsInBusiness"`
	ExistingLoans   int                `json:"existingLoans"`
	PastDefaults    int                `json:"pastDefaults"`
	AvgMonthlyGMV   float64            `json:"avgMonthlyGmv"`
	RiskScore       int                `json:"riskScore"`
	RiskTier        string             `json:"riskTier"`
	Flags           []string           `json:"flags,omitempty"`
	FactorScores    map[string]float64 `json:"factorScores,omitempty"`
}

// advisoryResponse is the wire response from the advisory service.
type advisoryResponse struct {
	Outcome   string `json:"outcome"`
	Rationale string `json:"rationale"`
}

// Recommend posts the risk context and parses the suggestion.
// Transport failures, non-2xx statuses, and malformed or unknown outcomes
// all surface as AdvisoryUnavailable.
func (a *HTTPAdvisor) Recommend(ctx context.Context, m *domain.MerchantProfile, rp *domain.RiskProfile) (*domain.Recommendation, error) {
	body, err := json.Marshal(&advisoryRequest{
		MerchantID:      m.ID,
		Category:        m.Category,
		MonthlyRevenue:  m.MonthlyRevenue,
		CreditScore:     m.CreditScore,
		YearsInBusiness: m.YearsInBusiness,
		ExistingLoans:   m.ExistingLoans,
		PastDefaults:    m.PastDefaults,
		AvgMonthlyGMV:   m.AvgMonthlyGMV(),
		RiskScore:       rp.Score,
		RiskTier:        string(rp.Tier),
		Flags:           rp.Flags,
		FactorScores:    rp.FactorScores,
	})
	if err != nil {
		return nil, &domain.AdvisoryUnavailable{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.AdvisoryUnavailable{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &domain.AdvisoryUnavailable{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.AdvisoryUnavailable{Err: fmt.Errorf("advisory returned status %d", resp.StatusCode)}
	}

	var out advisoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.AdvisoryUnavailable{Err: err}
	}

	outcome := domain.Outcome(out.Outcome)
	switch outcome {
	case domain.OutcomeApproved, domain.OutcomeConditions, domain.OutcomeRejected:
	default:
		return nil, &domain.AdvisoryUnavailable{Err: fmt.Errorf("advisory returned unknown outcome %q", out.Outcome)}
	}

	return &domain.Recommendation{
		Outcome:   outcome,
		Rationale: out.Rationale,
		Source:    "http",
	}, nil
}
