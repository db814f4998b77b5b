package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
	"github.com/vitrine-app/vitrine/internal/pkg/jobqueue"
	"github.com/vitrine-app/vitrine/internal/pkg/slug"
	"github.com/vitrine-app/vitrine/internal/pkg/usercontext"
)

type catalogRequest struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

// HandleListCatalogs lists the authenticated seller's catalogs.
func HandleListCatalogs(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	catalogs, err := repos().Catalog.ListByOwner(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"catalogs": catalogs})
}

// HandleCreateCatalog creates a catalog, enforcing the plan's catalog quota.
func HandleCreateCatalog(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req catalogRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	name := strings.TrimSpace(req.Name)
	if len(name) < 2 || len(name) > 150 {
		return respondError(c, apperr.Validation("catalog name must be 2-150 characters"))
	}

	catalogSlug := strings.TrimSpace(req.Slug)
	if catalogSlug == "" {
		catalogSlug = slug.Make(name)
	}
	if !slug.Valid(catalogSlug) {
		return respondError(c, apperr.Validation("invalid slug %q", catalogSlug))
	}

	count, err := repos().Catalog.CountByOwner(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	quota := entitlements.CheckCatalogQuota(entitlements.NormalizePlan(userCtx.Plan), int(count))
	if !quota.Allowed {
		return respondError(c, apperr.QuotaExceeded("catalogs", quota.Limit))
	}

	catalog := &models.Catalog{
		OwnerID: userCtx.UserID,
		Slug:    catalogSlug,
		Name:    name,
	}
	if req.Description != nil {
		catalog.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		catalog.IsPublic = *req.IsPublic
	}

	if err := repos().Catalog.Create(catalog); err != nil {
		return respondError(c, err)
	}

	invalidatePublicViews(userCtx.Username)
	return c.Status(fiber.StatusCreated).JSON(catalog)
}

// HandleGetCatalog returns one of the seller's catalogs.
func HandleGetCatalog(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}

	catalog, err := repos().Catalog.GetByID(userCtx.UserID, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(catalog)
}

// HandleUpdateCatalog updates name, slug, description or visibility.
func HandleUpdateCatalog(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}

	var req catalogRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	catalog, err := repos().Catalog.GetByID(userCtx.UserID, id)
	if err != nil {
		return respondError(c, err)
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		if len(name) < 2 || len(name) > 150 {
			return respondError(c, apperr.Validation("catalog name must be 2-150 characters"))
		}
		catalog.Name = name
	}
	if newSlug := strings.TrimSpace(req.Slug); newSlug != "" {
		if !slug.Valid(newSlug) {
			return respondError(c, apperr.Validation("invalid slug %q", newSlug))
		}
		catalog.Slug = newSlug
	}
	if req.Description != nil {
		catalog.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		catalog.IsPublic = *req.IsPublic
	}

	if err := repos().Catalog.Update(catalog); err != nil {
		return respondError(c, err)
	}

	invalidatePublicViews(userCtx.Username)
	return c.JSON(catalog)
}

// HandleDeleteCatalog deletes a catalog with its products and schedules
// cleanup of their stored images.
func HandleDeleteCatalog(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := paramUint(c, "catalogID")
	if err != nil {
		return respondError(c, err)
	}

	if _, err := repos().Catalog.GetByID(userCtx.UserID, id); err != nil {
		return respondError(c, err)
	}

	products, err := repos().Product.ListByCatalog(id)
	if err != nil {
		return respondError(c, err)
	}

	if err := repos().Catalog.Delete(userCtx.UserID, id); err != nil {
		return respondError(c, err)
	}

	// Orphaned objects are collected in the background after the delete
	// commits; a lost job leaves a stray object, never a broken catalog.
	for _, p := range products {
		enqueueImageCleanup(userCtx.UserID, p.Images)
	}

	invalidatePublicViews(userCtx.Username)
	return c.SendStatus(fiber.StatusNoContent)
}

// enqueueImageCleanup schedules deletion of stored objects behind image URLs.
// URLs that do not point into our store (external images) are skipped.
func enqueueImageCleanup(ownerID string, imageURLs []string) {
	if blobStore == nil || len(imageURLs) == 0 {
		return
	}
	for _, url := range imageURLs {
		if key, ok := blobStore.KeyFromURL(url); ok {
			jobqueue.GetManager().EnqueueBlobDelete(ownerID, key)
		}
	}
}
