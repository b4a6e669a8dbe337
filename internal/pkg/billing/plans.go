package billing

import (
	"strings"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/internal/pkg/env"
)

// Plan describes one tier of the static pricing table. ItemLimit is nil for
// unlimited plans.
type Plan struct {
	Name          string  `json:"name"`
	DisplayName   string  `json:"display_name"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	BillingCycle  string  `json:"billing_cycle"`
	StripePriceID string  `json:"-"`
	ItemLimit     *int64  `json:"item_limit"`
}

var (
	freeItemLimit int64 = 5
	proItemLimit  int64 = 50
)

// Plans returns the pricing table. Price IDs come from the environment so
// deployments can point at their own Stripe products.
func Plans() []Plan {
	return []Plan{
		{
			Name:         models.PlanFree,
			DisplayName:  "Free",
			Price:        0,
			Currency:     "USD",
			BillingCycle: "month",
			ItemLimit:    &freeItemLimit,
		},
		{
			Name:          models.PlanPro,
			DisplayName:   "Pro",
			Price:         29,
			Currency:      "USD",
			BillingCycle:  "month",
			StripePriceID: env.GetEnv("STRIPE_PRICE_PRO", ""),
			ItemLimit:     &proItemLimit,
		},
		{
			Name:          models.PlanEnterprise,
			DisplayName:   "Enterprise",
			Price:         99,
			Currency:      "USD",
			BillingCycle:  "month",
			StripePriceID: env.GetEnv("STRIPE_PRICE_ENTERPRISE", ""),
			ItemLimit:     nil, // unlimited
		},
	}
}

// GetPlan resolves a plan by name.
func GetPlan(name string) (Plan, bool) {
	n := NormalizePlan(name)
	for _, p := range Plans() {
		if p.Name == n {
			return p, true
		}
	}
	return Plan{}, false
}

// NormalizePlan maps arbitrary input to a known plan name, defaulting to free.
func NormalizePlan(plan string) string {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case models.PlanPro:
		return models.PlanPro
	case models.PlanEnterprise:
		return models.PlanEnterprise
	default:
		return models.PlanFree
	}
}

// PlanByPriceID matches a Stripe price id against the pricing table. Used as
// fallback when a subscription object carries no plan_name metadata.
func PlanByPriceID(priceID string) (string, bool) {
	id := strings.TrimSpace(priceID)
	if id == "" {
		return "", false
	}
	for _, p := range Plans() {
		if p.StripePriceID != "" && p.StripePriceID == id {
			return p.Name, true
		}
	}
	return "", false
}

// ItemLimit returns the item quota for a plan name. Unknown plans fall back
// to the free tier limit.
func ItemLimit(plan string) *int64 {
	p, ok := GetPlan(plan)
	if !ok {
		return &freeItemLimit
	}
	return p.ItemLimit
}

// IsPurchasable reports whether a plan can be bought through checkout.
func (p Plan) IsPurchasable() bool {
	return p.Name != models.PlanFree
}

// IsPriceConfigured reports whether a real Stripe price id is set. The
// documented sample values from the deployment guide count as unconfigured.
func (p Plan) IsPriceConfigured() bool {
	id := strings.TrimSpace(p.StripePriceID)
	if id == "" {
		return false
	}
	return !strings.HasPrefix(id, "price_YOUR")
}
