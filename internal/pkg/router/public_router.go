package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vitrine-app/vitrine/app/controllers"
)

type PublicRouter struct {
}

// InstallRouter registers the anonymous storefront routes. These are
// catch-all path patterns, so this router must be installed last.
func (h PublicRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/:username", controllers.HandlePublicStore)
	app.Get("/:username/:catalogSlug", controllers.HandlePublicCatalog)
}

func NewPublicRouter() *PublicRouter {
	return &PublicRouter{}
}
