package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/internal/pkg/cache"
	"github.com/launchfox/launchfox/internal/pkg/env"
)

// Service is the billing facade: checkout, portal, cancellation and the
// webhook-driven reconciliation that keeps local subscription state in step
// with the provider.
type Service struct {
	repo     Repository
	provider Provider
	appURL   string
}

// NewService wires the billing service. The public base URL is read from
// PUBLIC_DOMAIN and used for checkout redirect targets.
func NewService(repo Repository, provider Provider) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		appURL:   strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/"),
	}
}

// NewServiceFromDB is a convenience constructor for handlers: GORM-backed
// repository plus the env-configured Stripe client.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), NewStripeClientFromEnv())
}

// CurrentSubscription returns the user's entitling subscription, creating the
// explicit free row when the user has none.
func (s *Service) CurrentSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.ActiveSubscription(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return s.EnsureFreeFallback(ctx, userID)
}

// EnsureFreeFallback guarantees the user holds an entitling row and that the
// denormalized plan cache matches it.
func (s *Service) EnsureFreeFallback(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.EnsureFreeSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.refreshPlanCache(ctx, userID, sub.PlanName)
	return sub, nil
}

// refreshPlanCache writes the denormalized plan to the users table and
// publishes it to Redis so live sessions see webhook-driven plan changes
// without a re-login.
func (s *Service) refreshPlanCache(ctx context.Context, userID uint, planName string) {
	plan := NormalizePlan(planName)
	if err := s.repo.SetUserPlan(ctx, userID, plan); err != nil {
		log.Printf("[Billing] failed to refresh plan cache for user %d: %v", userID, err)
	}
	if err := cache.Set(UserPlanCacheKey(userID), plan, time.Hour); err != nil {
		log.Printf("[Billing] failed to publish plan for user %d: %v", userID, err)
	}
}

// UserPlanCacheKey is the Redis key carrying a user's current plan.
func UserPlanCacheKey(userID uint) string {
	return fmt.Sprintf("user:%d:plan", userID)
}

// ResyncPlan recomputes the plan caches from the subscription store. Support
// escape hatch for when the denormalized plan drifted from the entitling row.
func (s *Service) ResyncPlan(ctx context.Context, userID uint) (*models.Subscription, error) {
	sub, err := s.repo.ActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.EnsureFreeFallback(ctx, userID)
		}
		return nil, err
	}
	s.refreshPlanCache(ctx, userID, sub.PlanName)
	return sub, nil
}

// CreateCheckoutSession starts a provider checkout for a purchasable plan and
// returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User, planName string) (string, error) {
	plan, ok := GetPlan(planName)
	if !ok || !plan.IsPurchasable() {
		return "", ErrPlanNotPurchasable
	}
	if !plan.IsPriceConfigured() {
		return "", ErrPriceNotConfigured
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	metadata := map[string]string{
		"user_id":   strconv.FormatUint(uint64(user.ID), 10),
		"plan_name": plan.Name,
	}
	successURL := s.appURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := s.appURL + "/billing/cancel"

	checkout, err := s.provider.CreateCheckoutSession(ctx, customerID, plan.StripePriceID, successURL, cancelURL, metadata)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return checkout.URL, nil
}

// CancelSubscription schedules the user's paid subscription to end at the
// current period boundary. Entitlement is unchanged until the provider
// confirms the cancellation via webhook.
func (s *Service) CancelSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	return s.setCancelFlag(ctx, userID, true)
}

// ReactivateSubscription clears a pending at-period-end cancellation.
func (s *Service) ReactivateSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	return s.setCancelFlag(ctx, userID, false)
}

func (s *Service) setCancelFlag(ctx context.Context, userID uint, cancel bool) (*models.Subscription, error) {
	sub, err := s.repo.ActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoBillableSubscription
		}
		return nil, err
	}
	if !sub.IsPaid() {
		return nil, ErrNoBillableSubscription
	}

	ps, err := s.provider.SetCancelAtPeriodEnd(ctx, sub.StripeSubscriptionID, cancel)
	if err != nil {
		return nil, fmt.Errorf("update cancellation flag: %w", err)
	}
	return s.SyncProviderSubscription(ctx, userID, ps)
}

// BillingPortalURL creates a provider-hosted portal session for the user.
func (s *Service) BillingPortalURL(ctx context.Context, userID uint) (string, error) {
	sub, err := s.repo.ActiveSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoBillableSubscription
		}
		return "", err
	}
	if sub.StripeCustomerID == "" {
		return "", ErrNoBillableSubscription
	}
	return s.provider.CreateBillingPortalSession(ctx, sub.StripeCustomerID, s.appURL+"/billing")
}

// Invoices lists the user's stored invoices, newest first.
func (s *Service) Invoices(ctx context.Context, userID uint) ([]models.Invoice, error) {
	return s.repo.InvoicesByUser(ctx, userID, 50)
}

// SyncProviderSubscription reconciles a provider subscription snapshot. The
// target user is resolved from the caller, the snapshot metadata, or the
// customer id, in that order; with no attribution the snapshot is rejected.
// Afterwards the plan cache is refreshed and a user left without any
// entitling row falls back to the explicit free row.
func (s *Service) SyncProviderSubscription(ctx context.Context, userID uint, ps *ProviderSubscription) (*models.Subscription, error) {
	if userID == 0 {
		userID = s.resolveUser(ctx, ps)
	}

	planName := s.resolvePlan(ps)
	sub, err := s.repo.UpsertProviderSubscription(ctx, userID, ps, planName)
	if err != nil {
		return nil, err
	}

	if sub.IsActive() || sub.Status == models.SubscriptionStatusTrialing {
		s.refreshPlanCache(ctx, sub.UserID, sub.PlanName)
		return sub, nil
	}

	// The snapshot closed the user's paid subscription; make sure they land
	// back on an explicit free row.
	if _, err := s.EnsureFreeFallback(ctx, sub.UserID); err != nil {
		return nil, err
	}
	return sub, nil
}

// RecordInvoice stores an invoice snapshot, attributing it through the
// subscription it belongs to or, failing that, the customer id.
func (s *Service) RecordInvoice(ctx context.Context, pi *ProviderInvoice) error {
	userID := s.resolveInvoiceUser(ctx, pi)
	if userID == 0 {
		return ErrMissingAttribution
	}

	invoice := &models.Invoice{
		UserID:           userID,
		StripeInvoiceID:  pi.ID,
		StripeCustomerID: pi.CustomerID,
		Amount:           pi.Amount,
		Currency:         pi.Currency,
		Status:           pi.Status,
		InvoicePDF:       pi.InvoicePDF,
		HostedInvoiceURL: pi.HostedInvoiceURL,
		BillingReason:    pi.BillingReason,
		PeriodStart:      pi.PeriodStart,
		PeriodEnd:        pi.PeriodEnd,
		PaidAt:           pi.PaidAt,
	}
	if invoice.Currency == "" {
		invoice.Currency = "USD"
	}
	return s.repo.UpsertInvoice(ctx, invoice)
}

// RefreshSubscription refetches a subscription from the provider and
// reconciles it. Used when an event only carries a reference.
func (s *Service) RefreshSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	ps, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.SyncProviderSubscription(ctx, 0, ps)
}

// ClaimWebhookEvent records the delivery and reports whether this caller owns
// processing for it.
func (s *Service) ClaimWebhookEvent(ctx context.Context, envelope *WebhookEnvelope, payload []byte) (bool, error) {
	event := &models.WebhookEvent{
		StripeEventID: envelope.ID,
		EventType:     envelope.Type,
		Payload:       string(payload),
	}
	return s.repo.RecordWebhookEvent(ctx, event)
}

// FinishWebhookEvent closes out a claimed event. A nil processing error marks
// it processed; otherwise the failure is recorded so a redelivery can retry.
func (s *Service) FinishWebhookEvent(ctx context.Context, providerEventID string, processErr error) error {
	if processErr == nil {
		return s.repo.MarkWebhookProcessed(ctx, providerEventID)
	}
	return s.repo.MarkWebhookFailed(ctx, providerEventID, processErr.Error())
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	sub, err := s.CurrentSubscription(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if sub.StripeCustomerID != "" {
		return sub.StripeCustomerID, nil
	}

	c, err := s.provider.CreateCustomer(ctx, user.Email, user.Name, map[string]string{
		"user_id": strconv.FormatUint(uint64(user.ID), 10),
	})
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	if err := s.repo.SaveCustomerID(ctx, user.ID, c.ID); err != nil {
		log.Printf("[Billing] failed to persist customer id for user %d: %v", user.ID, err)
	}
	return c.ID, nil
}

func (s *Service) resolveUser(ctx context.Context, ps *ProviderSubscription) uint {
	if raw, ok := ps.Metadata["user_id"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
			return uint(id)
		}
	}
	if id, err := s.repo.UserIDByCustomerID(ctx, ps.CustomerID); err == nil {
		return id
	}
	return 0
}

func (s *Service) resolveInvoiceUser(ctx context.Context, pi *ProviderInvoice) uint {
	if pi.SubscriptionID != "" {
		if sub, err := s.repo.SubscriptionByProviderID(ctx, pi.SubscriptionID); err == nil {
			return sub.UserID
		}
	}
	if id, err := s.repo.UserIDByCustomerID(ctx, pi.CustomerID); err == nil {
		return id
	}
	return 0
}

// resolvePlan maps the snapshot onto a local plan: metadata hint first, price
// id match second, free as the last resort.
func (s *Service) resolvePlan(ps *ProviderSubscription) string {
	for _, key := range []string{"plan_name", "plan"} {
		if hint, ok := ps.Metadata[key]; ok {
			if plan, ok := GetPlan(hint); ok && plan.IsPurchasable() {
				return plan.Name
			}
		}
	}
	if name, ok := PlanByPriceID(ps.PriceID); ok {
		return name
	}
	return models.PlanFree
}
