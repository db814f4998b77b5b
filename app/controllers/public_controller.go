package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	metrics "github.com/vitrine-app/vitrine/internal/pkg/metrics/counter"
)

// HandlePublicStore serves the anonymous storefront page /{username}.
func HandlePublicStore(c *fiber.Ctx) error {
	username := c.Params("username")
	if username == "" {
		return respondError(c, apperr.ErrNotFound)
	}

	view, err := publicResolver.ResolveStore(username)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// HandlePublicCatalog serves the anonymous catalog page
// /{username}/{catalogSlug}. Supports ?sort=price_asc|price_desc.
func HandlePublicCatalog(c *fiber.Ctx) error {
	username := c.Params("username")
	catalogSlug := c.Params("catalogSlug")
	if username == "" || catalogSlug == "" {
		return respondError(c, apperr.ErrNotFound)
	}

	view, err := publicResolver.ResolveCatalog(username, catalogSlug, c.Query("sort"))
	if err != nil {
		return respondError(c, err)
	}

	// View counting is best-effort; a lost increment never fails the page.
	if view.ID != 0 {
		if err := metrics.AddCatalogView(view.ID); err != nil {
			log.Debugf("public: failed to count view for catalog %d: %v", view.ID, err)
		}
	}

	return c.JSON(view)
}
