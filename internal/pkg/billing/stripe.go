package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	portalsession "github.com/stripe/stripe-go/v78/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/customer"
	"github.com/stripe/stripe-go/v78/subscription"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/launchfox/launchfox/internal/pkg/env"
)

// StripeClient implements Provider on top of stripe-go.
type StripeClient struct{}

// NewStripeClientFromEnv configures the global Stripe key and returns a client.
func NewStripeClientFromEnv() *StripeClient {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	return &StripeClient{}
}

func (s *StripeClient) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*ProviderCustomer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := customer.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe customer create: %w", err)
	}
	return fromStripeCustomer(c), nil
}

func (s *StripeClient) GetCustomer(ctx context.Context, customerID string) (*ProviderCustomer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	c, err := customer.Get(customerID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe customer get: %w", err)
	}
	return fromStripeCustomer(c), nil
}

func (s *StripeClient) CreateCheckoutSession(ctx context.Context, customerID, priceID, successURL, cancelURL string, metadata map[string]string) (*ProviderCheckout, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(customerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		// Metadata on subscription_data ends up on the subscription object, so
		// webhook events can be attributed without any session state.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session create: %w", err)
	}
	out := &ProviderCheckout{
		ID:       sess.ID,
		URL:      sess.URL,
		Metadata: sess.Metadata,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	return out, nil
}

func (s *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe subscription get: %w", err)
	}
	return fromStripeSubscription(sub), nil
}

func (s *StripeClient) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}
	params.Context = ctx

	sub, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe subscription update: %w", err)
	}
	return fromStripeSubscription(sub), nil
}

func (s *StripeClient) CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := portalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe billing portal session create: %w", err)
	}
	return sess.URL, nil
}

// VerifyWebhookEvent validates the Stripe-Signature header against the raw
// payload and returns the parsed envelope. Fails closed on any mismatch.
func VerifyWebhookEvent(payload []byte, signatureHeader, secret string) (*WebhookEnvelope, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, secret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification: %w", err)
	}
	return &WebhookEnvelope{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: event.Data.Raw,
	}, nil
}

// ParseUnverifiedWebhookEvent parses a webhook payload WITHOUT signature
// verification. Only reachable in explicit insecure test mode.
func ParseUnverifiedWebhookEvent(payload []byte) (*WebhookEnvelope, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("webhook payload parse: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, errors.New("webhook payload missing event id or type")
	}
	return &WebhookEnvelope{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: event.Data.Raw,
	}, nil
}

// ParseSubscriptionObject decodes an event's subscription object into the
// typed reconciler input.
func ParseSubscriptionObject(raw []byte) (*ProviderSubscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("subscription object parse: %w", err)
	}
	if sub.ID == "" {
		return nil, errors.New("subscription object missing id")
	}
	return fromStripeSubscription(&sub), nil
}

// ParseInvoiceObject decodes an event's invoice object.
func ParseInvoiceObject(raw []byte) (*ProviderInvoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("invoice object parse: %w", err)
	}
	if inv.ID == "" {
		return nil, errors.New("invoice object missing id")
	}
	return fromStripeInvoice(&inv), nil
}

// ParseCheckoutObject decodes an event's checkout session object.
func ParseCheckoutObject(raw []byte) (*ProviderCheckout, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("checkout session object parse: %w", err)
	}
	if sess.ID == "" {
		return nil, errors.New("checkout session object missing id")
	}
	out := &ProviderCheckout{
		ID:       sess.ID,
		URL:      sess.URL,
		Metadata: sess.Metadata,
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	return out, nil
}

func fromStripeCustomer(c *stripe.Customer) *ProviderCustomer {
	return &ProviderCustomer{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Metadata: c.Metadata,
	}
}

func fromStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		Currency:           strings.ToUpper(string(sub.Currency)),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: unixTimePtr(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTimePtr(sub.CurrentPeriodEnd),
		StartDate:          unixTimePtr(sub.StartDate),
		Metadata:           sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		out.PriceID = price.ID
		out.Amount = float64(price.UnitAmount) / 100
		if price.Recurring != nil {
			out.Interval = string(price.Recurring.Interval)
		}
		if out.Currency == "" {
			out.Currency = strings.ToUpper(string(price.Currency))
		}
	}
	return out
}

func fromStripeInvoice(inv *stripe.Invoice) *ProviderInvoice {
	out := &ProviderInvoice{
		ID:               inv.ID,
		Amount:           float64(inv.AmountPaid) / 100,
		Currency:         strings.ToUpper(string(inv.Currency)),
		Status:           string(inv.Status),
		InvoicePDF:       inv.InvoicePDF,
		HostedInvoiceURL: inv.HostedInvoiceURL,
		BillingReason:    string(inv.BillingReason),
		PeriodStart:      unixTimePtr(inv.PeriodStart),
		PeriodEnd:        unixTimePtr(inv.PeriodEnd),
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.StatusTransitions != nil {
		out.PaidAt = unixTimePtr(inv.StatusTransitions.PaidAt)
	}
	return out
}

func unixTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
