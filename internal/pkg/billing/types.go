package billing

import "time"

// ProviderSubscription is the typed view of a Stripe subscription consumed by
// the reconciler, decoupled from the SDK wire shape.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	Amount             float64
	Currency           string
	Interval           string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	StartDate          *time.Time
	Metadata           map[string]string
}

// ProviderInvoice is the typed view of a Stripe invoice.
type ProviderInvoice struct {
	ID               string
	CustomerID       string
	SubscriptionID   string
	Amount           float64
	Currency         string
	Status           string
	InvoicePDF       string
	HostedInvoiceURL string
	BillingReason    string
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
	PaidAt           *time.Time
}

// ProviderCheckout is the typed view of a Stripe checkout session.
type ProviderCheckout struct {
	ID             string
	URL            string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

// ProviderCustomer is the typed view of a Stripe customer.
type ProviderCustomer struct {
	ID       string
	Email    string
	Name     string
	Metadata map[string]string
}

// WebhookEnvelope is a verified (or explicitly unverified, test-mode only)
// webhook event before dispatch.
type WebhookEnvelope struct {
	ID     string
	Type   string
	Object []byte
}
