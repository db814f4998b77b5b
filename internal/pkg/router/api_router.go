package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/vitrine-app/vitrine/app/controllers"
	"github.com/vitrine-app/vitrine/internal/pkg/middleware"
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

	// Webhook and plan catalog are unauthenticated: the webhook proves
	// itself via its signature, the plan list is public pricing data.
	v1.Post("/billing/webhook", controllers.HandleBillingWebhook)
	v1.Get("/billing/plans", controllers.HandleListPlans)

	authed := v1.Group("", middleware.RequireAuth)

	profile := authed.Group("/profile")
	profile.Get("/", controllers.HandleGetProfile)
	profile.Put("/", controllers.HandleUpdateProfile)
	profile.Post("/username", controllers.HandleClaimUsername)
	profile.Post("/photo", controllers.HandleUploadProfilePhoto)

	catalogs := authed.Group("/catalogs")
	catalogs.Get("/", controllers.HandleListCatalogs)
	catalogs.Post("/", controllers.HandleCreateCatalog)
	catalogs.Get("/:catalogID", controllers.HandleGetCatalog)
	catalogs.Put("/:catalogID", controllers.HandleUpdateCatalog)
	catalogs.Delete("/:catalogID", controllers.HandleDeleteCatalog)

	products := catalogs.Group("/:catalogID/products")
	products.Get("/", controllers.HandleListProducts)
	products.Post("/", controllers.HandleCreateProduct)
	products.Get("/:productID", controllers.HandleGetProduct)
	products.Put("/:productID", controllers.HandleUpdateProduct)
	products.Delete("/:productID", controllers.HandleDeleteProduct)

	authed.Post("/uploads/images", controllers.HandleUploadImage)

	billing := authed.Group("/billing")
	billing.Post("/checkout", controllers.HandleCreateCheckout)
	billing.Post("/cancel", controllers.HandleCancelSubscription)
	billing.Post("/resync", controllers.HandleBillingResync)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
