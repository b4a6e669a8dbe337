package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/launchfox/launchfox/app/controllers"
	"github.com/launchfox/launchfox/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Social OAuth
	app.Get("/auth/:provider", controllers.HandleOAuthBegin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
	app.Post("/auth/logout", middleware.RequireAuth, controllers.HandleOAuthLogout)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", controllers.HandleStripeWebhook)
}
