package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/app/repository"
	"github.com/launchfox/launchfox/internal/pkg/billing"
	"github.com/launchfox/launchfox/internal/pkg/database"
	"github.com/launchfox/launchfox/internal/pkg/session"
	"github.com/launchfox/launchfox/internal/pkg/usercontext"
)

type checkoutRequest struct {
	Plan string `json:"plan"`
}

func subscriptionResponse(sub *models.Subscription) fiber.Map {
	return fiber.Map{
		"plan_name":            sub.PlanName,
		"status":               sub.Status,
		"amount":               sub.Amount,
		"currency":             sub.Currency,
		"billing_cycle":        sub.BillingCycle,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
		"current_period_start": sub.CurrentPeriodStart,
		"current_period_end":   sub.CurrentPeriodEnd,
		"is_paid":              sub.IsPaid(),
	}
}

// HandleListPlans returns the static plan table.
func HandleListPlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": billing.Plans()})
}

// HandleGetSubscription returns the user's current subscription and plan.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.CurrentSubscription(c.Context(), userCtx.UserID)
	if err != nil {
		log.Printf("[Billing] subscription lookup failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription")
	}
	return c.JSON(fiber.Map{"subscription": subscriptionResponse(sub)})
}

// HandleCreateCheckout starts a provider checkout for a paid plan and returns
// the redirect URL.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Request body could not be parsed")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		log.Printf("[Billing] user lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	url, err := svc.CreateCheckoutSession(c.Context(), user, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrPlanNotPurchasable):
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "This plan cannot be purchased")
		case errors.Is(err, billing.ErrPriceNotConfigured):
			return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "Billing is not configured for this plan, contact support")
		default:
			log.Printf("[Billing] checkout failed for user %d: %v", userCtx.UserID, err)
			return jsonError(c, fiber.StatusBadGateway, "provider_error", "Checkout could not be started, please try again")
		}
	}
	return c.JSON(fiber.Map{"checkout_url": url})
}

// HandleCancelSubscription schedules the paid subscription to end at the
// period boundary.
func HandleCancelSubscription(c *fiber.Ctx) error {
	return handleCancelFlag(c, true)
}

// HandleReactivateSubscription clears a pending cancellation.
func HandleReactivateSubscription(c *fiber.Ctx) error {
	return handleCancelFlag(c, false)
}

func handleCancelFlag(c *fiber.Ctx, cancel bool) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	var (
		sub *models.Subscription
		err error
	)
	if cancel {
		sub, err = svc.CancelSubscription(c.Context(), userCtx.UserID)
	} else {
		sub, err = svc.ReactivateSubscription(c.Context(), userCtx.UserID)
	}
	if err != nil {
		if errors.Is(err, billing.ErrNoBillableSubscription) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "No paid subscription to modify")
		}
		log.Printf("[Billing] cancellation update failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "provider_error", "Subscription could not be updated, please try again")
	}
	return c.JSON(fiber.Map{"subscription": subscriptionResponse(sub)})
}

// HandleBillingResync recomputes the denormalized plan caches from the
// subscription store and refreshes the session copy.
func HandleBillingResync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.ResyncPlan(c.Context(), userCtx.UserID)
	if err != nil {
		log.Printf("[Billing] plan resync failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to resync subscription")
	}
	_ = session.SetSessionValue(c, USER_PLAN, billing.NormalizePlan(sub.PlanName))
	return c.JSON(fiber.Map{"subscription": subscriptionResponse(sub)})
}

// HandleBillingPortal returns a provider-hosted portal URL.
func HandleBillingPortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	url, err := svc.BillingPortalURL(c.Context(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, billing.ErrNoBillableSubscription) {
			return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "No billing account for this user yet")
		}
		log.Printf("[Billing] portal session failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "provider_error", "Billing portal is unavailable, please try again")
	}
	return c.JSON(fiber.Map{"portal_url": url})
}

// HandleListInvoices returns the user's stored invoices.
func HandleListInvoices(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	svc := billing.NewServiceFromDB(database.GetDB())
	invoices, err := svc.Invoices(c.Context(), userCtx.UserID)
	if err != nil {
		log.Printf("[Billing] invoice list failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load invoices")
	}
	return c.JSON(fiber.Map{"invoices": invoices})
}

// HandleBillingSuccess lands the user after a completed checkout. The actual
// state change arrives via webhook; this only refreshes the cached plan.
func HandleBillingSuccess(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		svc := billing.NewServiceFromDB(database.GetDB())
		if sub, err := svc.CurrentSubscription(c.Context(), userCtx.UserID); err == nil {
			_ = session.SetSessionValue(c, USER_PLAN, billing.NormalizePlan(sub.PlanName))
		}
	}
	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Payment received. Your plan will update within a few moments.",
	}).Redirect("/")
}

// HandleBillingCancel lands the user after an abandoned checkout.
func HandleBillingCancel(c *fiber.Ctx) error {
	return flash.WithInfo(c, fiber.Map{
		"type":    "info",
		"message": "Checkout cancelled. Your plan is unchanged.",
	}).Redirect("/")
}
