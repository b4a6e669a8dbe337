package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/launchfox/launchfox/internal/pkg/billing"
	"github.com/launchfox/launchfox/internal/pkg/database"
	"github.com/launchfox/launchfox/internal/pkg/env"
)

// HandleStripeWebhook ingests provider events. Responses drive Stripe's
// redelivery: 2xx acknowledges, 400 drops a delivery we can never accept,
// 5xx asks for a retry.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")
	var (
		envelope *billing.WebhookEnvelope
		err      error
	)
	if secret != "" {
		envelope, err = billing.VerifyWebhookEvent(payload, c.Get("Stripe-Signature"), secret)
		if err != nil {
			log.Printf("[Webhook] signature verification failed: %v", err)
			return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
		}
	} else if env.GetEnv("BILLING_ALLOW_UNVERIFIED_WEBHOOKS", "false") == "true" {
		// Explicit opt-in for local testing without a webhook secret.
		envelope, err = billing.ParseUnverifiedWebhookEvent(payload)
		if err != nil {
			log.Printf("[Webhook] unverified payload rejected: %v", err)
			return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "Webhook payload could not be parsed")
		}
	} else {
		log.Printf("[Webhook] rejected delivery: STRIPE_WEBHOOK_SECRET is not configured")
		return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "Webhook processing is not configured")
	}

	ingester := billing.NewIngester(billing.NewServiceFromDB(database.GetDB()))
	if err := ingester.Handle(c.Context(), envelope, payload); err != nil {
		log.Printf("[Webhook] processing failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "processing_failed", "Event processing failed, delivery will be retried")
	}

	return c.JSON(fiber.Map{"received": true})
}
