package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/launchfox/launchfox/app/controllers"
	"github.com/launchfox/launchfox/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Plans are public; everything else needs a session.
	v1.Get("/plans", controllers.HandleListPlans)

	items := v1.Group("/items", middleware.RequireAPISessionAuth)
	items.Get("/", controllers.HandleListItems)
	items.Post("/", controllers.HandleCreateItem)
	items.Get("/quota", controllers.HandleGetQuota)
	items.Get("/:uuid", controllers.HandleGetItem)
	items.Put("/:uuid", controllers.HandleUpdateItem)
	items.Delete("/:uuid", controllers.HandleDeleteItem)

	billing := v1.Group("/billing", middleware.RequireAPISessionAuth)
	billing.Get("/subscription", controllers.HandleGetSubscription)
	billing.Post("/checkout", controllers.HandleCreateCheckout)
	billing.Post("/cancel", controllers.HandleCancelSubscription)
	billing.Post("/reactivate", controllers.HandleReactivateSubscription)
	billing.Post("/resync", controllers.HandleBillingResync)
	billing.Get("/portal", controllers.HandleBillingPortal)
	billing.Get("/invoices", controllers.HandleListInvoices)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
