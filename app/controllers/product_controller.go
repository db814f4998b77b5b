package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
	"github.com/vitrine-app/vitrine/internal/pkg/slug"
	"github.com/vitrine-app/vitrine/internal/pkg/usercontext"
)

type productRequest struct {
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	RemovePrice bool             `json:"remove_price"`
	Images      []string         `json:"images"`
	Visible     *bool            `json:"visible"`
}

// HandleListProducts lists the products of one of the seller's catalogs.
func HandleListProducts(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	catalogID, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := repos().Catalog.GetByID(userCtx.UserID, catalogID); err != nil {
		return respondError(c, err)
	}

	products, err := repos().Product.ListByCatalog(catalogID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"products": products})
}

// HandleCreateProduct creates a product, enforcing the per-catalog quota.
func HandleCreateProduct(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	catalogID, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := repos().Catalog.GetByID(userCtx.UserID, catalogID); err != nil {
		return respondError(c, err)
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	name := strings.TrimSpace(req.Name)
	if len(name) < 2 || len(name) > 150 {
		return respondError(c, apperr.Validation("product name must be 2-150 characters"))
	}

	productSlug := strings.TrimSpace(req.Slug)
	if productSlug == "" {
		productSlug = slug.Make(name)
	}
	if !slug.Valid(productSlug) {
		return respondError(c, apperr.Validation("invalid slug %q", productSlug))
	}

	if req.Price != nil && req.Price.IsNegative() {
		return respondError(c, apperr.Validation("price must not be negative"))
	}

	count, err := repos().Product.CountByCatalog(catalogID)
	if err != nil {
		return respondError(c, err)
	}
	quota := entitlements.CheckProductQuota(entitlements.NormalizePlan(userCtx.Plan), int(count))
	if !quota.Allowed {
		return respondError(c, apperr.QuotaExceeded("products", quota.Limit))
	}

	product := &models.Product{
		CatalogID: catalogID,
		Slug:      productSlug,
		Name:      name,
		Price:     req.Price,
		Images:    req.Images,
		Visible:   true,
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.Visible != nil {
		product.Visible = *req.Visible
	}

	if err := repos().Product.Create(product); err != nil {
		return respondError(c, err)
	}

	// Submitted images beyond the gallery cap never make it into the row;
	// their uploaded objects are cleaned up instead of orphaned.
	enqueueImageCleanup(userCtx.UserID, removedImages(req.Images, product.Images))
	invalidatePublicViews(userCtx.Username)
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleGetProduct returns a single product of the seller's catalog.
func HandleGetProduct(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	catalogID, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}
	productID, err := paramUint(c, "productID")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := repos().Catalog.GetByID(userCtx.UserID, catalogID); err != nil {
		return respondError(c, err)
	}

	product, err := repos().Product.GetByID(catalogID, productID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

// HandleUpdateProduct updates a product. Replaced images are cleaned up from
// the object store in the background.
func HandleUpdateProduct(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	catalogID, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}
	productID, err := paramUint(c, "productID")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := repos().Catalog.GetByID(userCtx.UserID, catalogID); err != nil {
		return respondError(c, err)
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	product, err := repos().Product.GetByID(catalogID, productID)
	if err != nil {
		return respondError(c, err)
	}
	previousImages := append([]string(nil), product.Images...)

	if name := strings.TrimSpace(req.Name); name != "" {
		if len(name) < 2 || len(name) > 150 {
			return respondError(c, apperr.Validation("product name must be 2-150 characters"))
		}
		product.Name = name
	}
	if newSlug := strings.TrimSpace(req.Slug); newSlug != "" {
		if !slug.Valid(newSlug) {
			return respondError(c, apperr.Validation("invalid slug %q", newSlug))
		}
		product.Slug = newSlug
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.RemovePrice {
		product.Price = nil
	} else if req.Price != nil {
		if req.Price.IsNegative() {
			return respondError(c, apperr.Validation("price must not be negative"))
		}
		product.Price = req.Price
	}
	// Oversized galleries are normalized down to the cap on write.
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Visible != nil {
		product.Visible = *req.Visible
	}

	if err := repos().Product.Update(product); err != nil {
		return respondError(c, err)
	}

	// The diff covers both the previously stored gallery and the submitted
	// list, so entries dropped by normalization are cleaned up too.
	enqueueImageCleanup(userCtx.UserID, removedImages(append(previousImages, req.Images...), product.Images))
	invalidatePublicViews(userCtx.Username)
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product and schedules image cleanup.
func HandleDeleteProduct(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	catalogID, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}
	productID, err := paramUint(c, "productID")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := repos().Catalog.GetByID(userCtx.UserID, catalogID); err != nil {
		return respondError(c, err)
	}

	product, err := repos().Product.GetByID(catalogID, productID)
	if err != nil {
		return respondError(c, err)
	}

	if err := repos().Product.Delete(catalogID, productID); err != nil {
		return respondError(c, err)
	}

	enqueueImageCleanup(userCtx.UserID, product.Images)
	invalidatePublicViews(userCtx.Username)
	return c.SendStatus(fiber.StatusNoContent)
}

// removedImages returns the URLs present before but not after a write, each
// one once, so every dropped reference gets exactly one cleanup job.
func removedImages(before, after []string) []string {
	kept := make(map[string]bool, len(after))
	for _, url := range after {
		kept[url] = true
	}
	var removed []string
	seen := make(map[string]bool, len(before))
	for _, url := range before {
		if url == "" || kept[url] || seen[url] {
			continue
		}
		seen[url] = true
		removed = append(removed, url)
	}
	return removed
}
