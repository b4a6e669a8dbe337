package billing

import (
	"testing"
	"time"

	"github.com/launchfox/launchfox/app/models"
)

func TestNormalizeProviderStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "trialing", want: models.SubscriptionStatusTrialing},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "canceled", want: models.SubscriptionStatusCancelled},
		{in: "cancelled", want: models.SubscriptionStatusCancelled},
		{in: "unpaid", want: models.SubscriptionStatusUnpaid},
		{in: "incomplete", want: models.SubscriptionStatusIncomplete},
		{in: "incomplete_expired", want: models.SubscriptionStatusIncomplete},
		{in: "paused", want: "paused"},
	}

	for _, tt := range tests {
		if got := normalizeProviderStatus(tt.in); got != tt.want {
			t.Fatalf("normalizeProviderStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsEntitlingStatus(t *testing.T) {
	for _, status := range []string{models.SubscriptionStatusActive, models.SubscriptionStatusTrialing} {
		if !isEntitlingStatus(status) {
			t.Fatalf("expected status %q to be entitling", status)
		}
	}
	for _, status := range []string{models.SubscriptionStatusCancelled, models.SubscriptionStatusPastDue, models.SubscriptionStatusUnpaid, ""} {
		if isEntitlingStatus(status) {
			t.Fatalf("expected status %q to be non-entitling", status)
		}
	}
}

func TestApplyProviderFieldsInsert(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	sub := &models.Subscription{UserID: 7}
	applyProviderFields(sub, &ProviderSubscription{
		ID:                 "sub_123",
		CustomerID:         "cus_123",
		Status:             "active",
		PriceID:            "price_abc",
		Amount:             29,
		Currency:           "USD",
		Interval:           "month",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		StartDate:          &start,
	}, "pro")

	if sub.StripeSubscriptionID != "sub_123" {
		t.Fatalf("expected subscription id to be set, got %q", sub.StripeSubscriptionID)
	}
	if sub.PlanName != "pro" || sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("unexpected plan/status: %q/%q", sub.PlanName, sub.Status)
	}
	if sub.Amount != 29 || sub.Currency != "USD" || sub.BillingCycle != "month" {
		t.Fatalf("unexpected pricing fields: %v %q %q", sub.Amount, sub.Currency, sub.BillingCycle)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("expected period end %v, got %v", end, sub.CurrentPeriodEnd)
	}
	if sub.StartedAt == nil || !sub.StartedAt.Equal(start) {
		t.Fatalf("expected started at %v, got %v", start, sub.StartedAt)
	}
	if sub.CancelledAt != nil {
		t.Fatalf("expected no cancelled timestamp on an active subscription")
	}
}

func TestApplyProviderFieldsNeverRebindsExternalID(t *testing.T) {
	sub := &models.Subscription{
		UserID:               7,
		StripeSubscriptionID: "sub_original",
	}
	applyProviderFields(sub, &ProviderSubscription{ID: "sub_other", Status: "active"}, "pro")

	if sub.StripeSubscriptionID != "sub_original" {
		t.Fatalf("external id must be immutable, got %q", sub.StripeSubscriptionID)
	}
	if sub.UserID != 7 {
		t.Fatalf("user attribution must be immutable, got %d", sub.UserID)
	}
}

func TestApplyProviderFieldsCancellation(t *testing.T) {
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{
		UserID:               7,
		StripeSubscriptionID: "sub_123",
		Status:               models.SubscriptionStatusActive,
	}
	applyProviderFields(sub, &ProviderSubscription{
		ID:               "sub_123",
		Status:           "canceled",
		CurrentPeriodEnd: &end,
	}, "pro")

	if sub.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled status, got %q", sub.Status)
	}
	if sub.CancelledAt == nil {
		t.Fatalf("expected cancelled timestamp to be stamped")
	}
	if sub.EndsAt == nil || !sub.EndsAt.Equal(end) {
		t.Fatalf("expected ends at %v, got %v", end, sub.EndsAt)
	}
}
