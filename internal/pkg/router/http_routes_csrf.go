package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/launchfox/launchfox/app/controllers"
	"github.com/launchfox/launchfox/internal/pkg/env"
	"github.com/launchfox/launchfox/internal/pkg/middleware"
)

func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "header:X-Csrf-Token",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/webhooks/")
		},
	}

	group := app.Group("", cors.New(), csrf.New(csrfConf))

	// Auth
	group.Post("/register", loggedInMiddleware, controllers.HandleAuthRegister)
	group.Post("/login", loggedInMiddleware, controllers.HandleAuthLogin)
	group.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)
	group.Get("/me", middleware.RequireAuth, controllers.HandleAuthMe)

	// Billing checkout landing pages
	group.Get("/billing/success", loggedInMiddleware, controllers.HandleBillingSuccess)
	group.Get("/billing/cancel", loggedInMiddleware, controllers.HandleBillingCancel)
}
