package billing

import "context"

// Provider abstracts the payment provider calls the billing service needs.
// The production implementation is StripeClient; tests use fakes.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*ProviderCustomer, error)
	GetCustomer(ctx context.Context, customerID string) (*ProviderCustomer, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string, metadata map[string]string) (*ProviderCheckout, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProviderSubscription, error)
	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}
