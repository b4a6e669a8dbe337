package billing

import (
	"context"
	"fmt"
	"log"
)

// Webhook event types the ingester acts on. Everything else is recorded and
// acknowledged without side effects.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentOK     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// Ingester turns verified webhook envelopes into reconciler calls. Each event
// id is processed at most once; failures are recorded so the provider's
// redelivery can retry them.
type Ingester struct {
	service *Service
}

func NewIngester(service *Service) *Ingester {
	return &Ingester{service: service}
}

// Handle processes one webhook delivery. A nil return means the delivery may
// be acknowledged; a non-nil return asks the provider to redeliver.
func (in *Ingester) Handle(ctx context.Context, envelope *WebhookEnvelope, payload []byte) error {
	claimed, err := in.service.ClaimWebhookEvent(ctx, envelope, payload)
	if err != nil {
		return fmt.Errorf("claim webhook event %s: %w", envelope.ID, err)
	}
	if !claimed {
		// Already processed, or another delivery owns it right now.
		log.Printf("[Billing] duplicate webhook event %s (%s), acknowledging", envelope.ID, envelope.Type)
		return nil
	}

	processErr := in.dispatch(ctx, envelope)
	if err := in.service.FinishWebhookEvent(ctx, envelope.ID, processErr); err != nil {
		log.Printf("[Billing] failed to finalize webhook event %s: %v", envelope.ID, err)
	}
	if processErr != nil {
		return fmt.Errorf("process webhook event %s (%s): %w", envelope.ID, envelope.Type, processErr)
	}
	return nil
}

func (in *Ingester) dispatch(ctx context.Context, envelope *WebhookEnvelope) error {
	switch envelope.Type {
	case EventCheckoutCompleted:
		return in.handleCheckoutCompleted(ctx, envelope)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return in.handleSubscriptionChange(ctx, envelope)
	case EventInvoicePaymentOK, EventInvoicePaymentFailed:
		return in.handleInvoice(ctx, envelope)
	default:
		log.Printf("[Billing] ignoring webhook event type %s", envelope.Type)
		return nil
	}
}

// handleCheckoutCompleted fetches the fresh subscription the checkout created
// and reconciles it. The session object itself only carries references.
func (in *Ingester) handleCheckoutCompleted(ctx context.Context, envelope *WebhookEnvelope) error {
	checkout, err := ParseCheckoutObject(envelope.Object)
	if err != nil {
		return err
	}
	if checkout.SubscriptionID == "" {
		// One-time payment sessions carry no subscription; nothing to do.
		return nil
	}
	if _, err := in.service.RefreshSubscription(ctx, checkout.SubscriptionID); err != nil {
		return err
	}
	return nil
}

func (in *Ingester) handleSubscriptionChange(ctx context.Context, envelope *WebhookEnvelope) error {
	ps, err := ParseSubscriptionObject(envelope.Object)
	if err != nil {
		return err
	}
	if envelope.Type == EventSubscriptionDeleted && ps.Status == "" {
		ps.Status = "canceled"
	}
	if _, err := in.service.SyncProviderSubscription(ctx, 0, ps); err != nil {
		return err
	}
	return nil
}

// handleInvoice stores the invoice. A successful payment also refetches the
// referenced subscription so renewals land the new period bounds even when no
// subscription.updated event arrives for them.
func (in *Ingester) handleInvoice(ctx context.Context, envelope *WebhookEnvelope) error {
	invoice, err := ParseInvoiceObject(envelope.Object)
	if err != nil {
		return err
	}
	if err := in.service.RecordInvoice(ctx, invoice); err != nil {
		return err
	}
	if envelope.Type == EventInvoicePaymentOK && invoice.SubscriptionID != "" {
		if _, err := in.service.RefreshSubscription(ctx, invoice.SubscriptionID); err != nil {
			return err
		}
	}
	return nil
}
