package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

func subscriptionEventPayload(t *testing.T, eventID, eventType, subID, status string, userID uint) []byte {
	t.Helper()
	payload := fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"api_version": %q,
		"data": {
			"object": {
				"id": %q,
				"object": "subscription",
				"customer": "cus_7",
				"status": %q,
				"cancel_at_period_end": false,
				"current_period_start": 1767225600,
				"current_period_end": 1769904000,
				"start_date": 1767225600,
				"metadata": {"user_id": "%d", "plan_name": "pro"},
				"items": {
					"data": [
						{"price": {"id": "price_pro_123", "unit_amount": 2900, "currency": "usd", "recurring": {"interval": "month"}}}
					]
				}
			}
		}
	}`, eventID, eventType, stripe.APIVersion, subID, status, userID)
	return []byte(payload)
}

func newTestIngester() (*Ingester, *fakeRepo, *fakeProvider) {
	repo := newFakeRepo()
	provider := &fakeProvider{}
	svc := NewService(repo, provider)
	return NewIngester(svc), repo, provider
}

func TestIngesterSubscriptionCreated(t *testing.T) {
	ingester, repo, _ := newTestIngester()

	payload := subscriptionEventPayload(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", 7)
	envelope, err := ParseUnverifiedWebhookEvent(payload)
	if err != nil {
		t.Fatalf("payload parse failed: %v", err)
	}

	if err := ingester.Handle(context.Background(), envelope, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, ok := repo.byProvider["sub_1"]
	if !ok {
		t.Fatalf("expected subscription to be reconciled")
	}
	if sub.UserID != 7 || sub.PlanName != "pro" || sub.Amount != 29 {
		t.Fatalf("unexpected subscription state: %+v", sub)
	}
	event := repo.events["evt_1"]
	if event == nil || !event.Processed || event.ProcessedAt == nil {
		t.Fatalf("expected event to be marked processed, got %+v", event)
	}
}

func TestIngesterDuplicateEventNotReprocessed(t *testing.T) {
	ingester, repo, _ := newTestIngester()

	payload := subscriptionEventPayload(t, "evt_1", EventSubscriptionUpdated, "sub_1", "active", 7)
	envelope, err := ParseUnverifiedWebhookEvent(payload)
	if err != nil {
		t.Fatalf("payload parse failed: %v", err)
	}

	if err := ingester.Handle(context.Background(), envelope, payload); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	calls := repo.upsertCalls

	if err := ingester.Handle(context.Background(), envelope, payload); err != nil {
		t.Fatalf("redelivery must be acknowledged, got %v", err)
	}
	if repo.upsertCalls != calls {
		t.Fatalf("redelivery must not reconcile again: %d -> %d", calls, repo.upsertCalls)
	}
}

func TestIngesterFailedEventRetriedOnRedelivery(t *testing.T) {
	ingester, repo, _ := newTestIngester()

	// No user_id metadata and an unknown customer: attribution fails.
	payload := subscriptionEventPayload(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", 0)
	envelope, err := ParseUnverifiedWebhookEvent(payload)
	if err != nil {
		t.Fatalf("payload parse failed: %v", err)
	}

	if err := ingester.Handle(context.Background(), envelope, payload); err == nil {
		t.Fatalf("expected processing error for unattributable event")
	}
	event := repo.events["evt_1"]
	if event == nil || event.Processed || event.ErrorMessage == "" {
		t.Fatalf("expected recorded failure, got %+v", event)
	}

	// Attribution becomes possible; the redelivery must be re-claimed.
	repo.customers["cus_7"] = 7
	if err := ingester.Handle(context.Background(), envelope, payload); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if event := repo.events["evt_1"]; event == nil || !event.Processed {
		t.Fatalf("expected event to be processed after retry, got %+v", event)
	}
}

func TestIngesterSubscriptionDeletedFallsBackToFree(t *testing.T) {
	ingester, repo, _ := newTestIngester()

	created := subscriptionEventPayload(t, "evt_1", EventSubscriptionCreated, "sub_1", "active", 7)
	envelope, _ := ParseUnverifiedWebhookEvent(created)
	if err := ingester.Handle(context.Background(), envelope, created); err != nil {
		t.Fatalf("setup sync failed: %v", err)
	}

	deleted := subscriptionEventPayload(t, "evt_2", EventSubscriptionDeleted, "sub_1", "canceled", 7)
	envelope, _ = ParseUnverifiedWebhookEvent(deleted)
	if err := ingester.Handle(context.Background(), envelope, deleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.byProvider["sub_1"].Status == "active" {
		t.Fatalf("expected paid subscription to be closed")
	}
	if repo.freeEnsured != 1 {
		t.Fatalf("expected free fallback row, got %d", repo.freeEnsured)
	}
	if repo.planCache[7] != "free" {
		t.Fatalf("expected plan cache to drop to free, got %q", repo.planCache[7])
	}
}

func TestIngesterInvoicePaymentSucceeded(t *testing.T) {
	ingester, repo, _ := newTestIngester()
	repo.customers["cus_7"] = 7

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_inv",
		"type": %q,
		"api_version": %q,
		"data": {
			"object": {
				"id": "in_1",
				"object": "invoice",
				"customer": "cus_7",
				"amount_paid": 2900,
				"currency": "usd",
				"status": "paid",
				"billing_reason": "subscription_cycle",
				"period_start": 1767225600,
				"period_end": 1769904000
			}
		}
	}`, EventInvoicePaymentOK, stripe.APIVersion))
	envelope, err := ParseUnverifiedWebhookEvent(payload)
	if err != nil {
		t.Fatalf("payload parse failed: %v", err)
	}

	if err := ingester.Handle(context.Background(), envelope, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inv := repo.invoices["in_1"]
	if inv == nil || inv.UserID != 7 {
		t.Fatalf("expected invoice attributed to user 7, got %+v", inv)
	}
	if inv.Amount != 29 || inv.Currency != "USD" {
		t.Fatalf("unexpected invoice amount: %v %q", inv.Amount, inv.Currency)
	}
}

func TestIngesterInvoicePaymentSucceededResyncsSubscription(t *testing.T) {
	ingester, repo, provider := newTestIngester()
	repo.customers["cus_7"] = 7

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	provider.sub = &ProviderSubscription{
		ID:                 "sub_1",
		CustomerID:         "cus_7",
		Status:             "active",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		Metadata:           map[string]string{"user_id": "7", "plan_name": "pro"},
	}

	payload := []byte(fmt.Sprintf(`{
		"id": "evt_renewal",
		"type": %q,
		"api_version": %q,
		"data": {
			"object": {
				"id": "in_2",
				"object": "invoice",
				"customer": "cus_7",
				"subscription": "sub_1",
				"amount_paid": 2900,
				"currency": "usd",
				"status": "paid",
				"billing_reason": "subscription_cycle"
			}
		}
	}`, EventInvoicePaymentOK, stripe.APIVersion))
	envelope, err := ParseUnverifiedWebhookEvent(payload)
	if err != nil {
		t.Fatalf("payload parse failed: %v", err)
	}

	if err := ingester.Handle(context.Background(), envelope, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The renewal must land the fresh period bounds without relying on a
	// separate subscription.updated delivery.
	sub, ok := repo.byProvider["sub_1"]
	if !ok {
		t.Fatalf("expected the referenced subscription to be re-synced")
	}
	if sub.UserID != 7 || sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("unexpected subscription state after renewal: %+v", sub)
	}
	if repo.invoices["in_2"] == nil {
		t.Fatalf("expected the renewal invoice to be stored")
	}
}

func TestIngesterIgnoresUnknownEventTypes(t *testing.T) {
	ingester, repo, _ := newTestIngester()

	payload := []byte(`{"id": "evt_x", "type": "customer.created", "data": {"object": {"id": "cus_1"}}}`)
	envelope, err := ParseUnverifiedWebhookEvent(payload)
	if err != nil {
		t.Fatalf("payload parse failed: %v", err)
	}

	if err := ingester.Handle(context.Background(), envelope, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event := repo.events["evt_x"]; event == nil || !event.Processed {
		t.Fatalf("expected unknown event to be recorded and acknowledged, got %+v", event)
	}
	if repo.upsertCalls != 0 {
		t.Fatalf("unknown event must not reconcile anything")
	}
}

func TestVerifyWebhookEvent(t *testing.T) {
	payload := subscriptionEventPayload(t, "evt_sig", EventSubscriptionUpdated, "sub_1", "active", 7)
	secret := "whsec_test"

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	envelope, err := VerifyWebhookEvent(payload, header, secret)
	if err != nil {
		t.Fatalf("expected signature to verify: %v", err)
	}
	if envelope.ID != "evt_sig" || envelope.Type != EventSubscriptionUpdated {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}

	if _, err := VerifyWebhookEvent(payload, header, "whsec_other"); err == nil {
		t.Fatalf("expected verification to fail with the wrong secret")
	}
	if _, err := VerifyWebhookEvent([]byte(`{}`), header, secret); err == nil {
		t.Fatalf("expected verification to fail for a tampered payload")
	}
}

func TestParseUnverifiedWebhookEvent(t *testing.T) {
	if _, err := ParseUnverifiedWebhookEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected parse error for invalid JSON")
	}
	if _, err := ParseUnverifiedWebhookEvent([]byte(`{"id": "", "type": ""}`)); err == nil {
		t.Fatalf("expected error for missing id/type")
	}

	envelope, err := ParseUnverifiedWebhookEvent([]byte(`{"id": "evt_1", "type": "invoice.payment_failed", "data": {"object": {"id": "in_1"}}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(envelope.Object, &obj); err != nil || obj["id"] != "in_1" {
		t.Fatalf("unexpected envelope object: %s (%v)", envelope.Object, err)
	}
}
