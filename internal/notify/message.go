package notify

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// FormatUnderwritingResult renders the merchant-facing message for an
// approved decision. The offer link, when present, carries the
// merchant's secure token so the landing page can identify them.
func FormatUnderwritingResult(m *domain.MerchantProfile, d *domain.Decision, offerLink string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hello %s!\n\n", m.BusinessName)

	switch d.Outcome {
	case domain.OutcomeApproved:
		b.WriteString("Great news! Your business has been approved for financial products.\n")
	case domain.OutcomeConditions:
		b.WriteString("Your business has been conditionally approved for financial products.\n")
	}

	if d.Offer != nil && d.Offer.Credit != nil {
		c := d.Offer.Credit
		fmt.Fprintf(&b, "\n💳 Credit Line\n")
		fmt.Fprintf(&b, "   Limit: %s\n", formatAmount(c.Limit))
		fmt.Fprintf(&b, "   Rate: %.1f%% p.a.\n", c.AnnualRatePct)
		fmt.Fprintf(&b, "   Tenure: %s months\n", joinMonths(c.TenureMonths))
	}

	if d.Offer != nil && d.Offer.Insurance != nil {
		i := d.Offer.Insurance
		fmt.Fprintf(&b, "\n🛡 Business Insurance\n")
		fmt.Fprintf(&b, "   Coverage: %s\n", formatAmount(i.Coverage))
		fmt.Fprintf(&b, "   Annual premium: %s\n", formatAmount(i.AnnualPremium))
		fmt.Fprintf(&b, "   Policy class: %s\n", i.PolicyClass)
	}

	if d.Outcome == domain.OutcomeConditions {
		b.WriteString("\nConditional terms apply. Our team will reach out with details.\n")
	}

	if offerLink != "" {
		fmt.Fprintf(&b, "\nView and accept your offer: %s\n", offerLink)
	}

	b.WriteString("\nThis offer is based on your latest business performance.")
	return b.String()
}

// OfferLink builds the merchant's offer page URL from the configured
// base, or "" when no base is configured.
func OfferLink(baseURL string, m *domain.MerchantProfile) string {
	if baseURL == "" || m.SecureToken == "" {
		return ""
	}
	return fmt.Sprintf("%s/offer/%s", strings.TrimRight(baseURL, "/"), m.SecureToken)
}

func formatAmount(v float64) string {
	if v >= 10000000 {
		return fmt.Sprintf("₹%.2f Cr", v/10000000)
	}
	if v >= 100000 {
		return fmt.Sprintf("₹%.2f L", v/100000)
	}
	return fmt.Sprintf("₹%.0f", v)
}

func joinMonths(months []int) string {
	parts := make([]string, len(months))
	for i, m := range months {
		parts[i] = fmt.Sprintf("%d", m)
	}
	return strings.Join(parts, "/")
}
