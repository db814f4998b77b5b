package controllers

import (
	"errors"
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vitrine-app/vitrine/app/repository"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/billing"
	"github.com/vitrine-app/vitrine/internal/pkg/blobstore"
	"github.com/vitrine-app/vitrine/internal/pkg/publicview"
)

// Shared handler dependencies, wired once at startup.
var (
	depsOnce       sync.Once
	publicResolver *publicview.Resolver
	billingService *billing.Service
	blobStore      blobstore.Store
)

// Deps bundles the services the handlers use.
type Deps struct {
	PublicResolver *publicview.Resolver
	BillingService *billing.Service
	BlobStore      blobstore.Store
}

// Initialize wires the controller package. Called once from router setup.
func Initialize(deps Deps) {
	depsOnce.Do(func() {
		publicResolver = deps.PublicResolver
		billingService = deps.BillingService
		blobStore = deps.BlobStore
	})
}

// respondError maps domain errors onto HTTP responses. Everything that is not
// part of the taxonomy becomes an opaque 500.
func respondError(c *fiber.Ctx, err error) error {
	if qe, ok := apperr.IsQuotaExceeded(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":    "quota_exceeded",
			"message":  qe.Error(),
			"resource": qe.Resource,
			"limit":    qe.Limit,
		})
	}
	if ve, ok := apperr.IsValidation(err); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_failed",
			"message": ve.Message,
		})
	}

	switch {
	case errors.Is(err, apperr.ErrInvalidCredential):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "invalid_credential",
			"message": "missing or invalid authentication",
		})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "resource not found",
		})
	case errors.Is(err, apperr.ErrUsernameTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "username_taken",
			"message": "username is already claimed",
		})
	case errors.Is(err, apperr.ErrDuplicateSlug):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "duplicate_slug",
			"message": "slug already in use",
		})
	case errors.Is(err, apperr.ErrAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "already_exists",
			"message": "resource already exists",
		})
	case errors.Is(err, apperr.ErrExternalProvider):
		log.Errorf("provider error: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "provider_unavailable",
			"message": "billing provider request failed",
		})
	default:
		log.Errorf("unhandled error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "something went wrong",
		})
	}
}

// paramUint parses a numeric route parameter.
func paramUint(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	val, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || val == 0 {
		return 0, apperr.Validation("invalid %s %q", name, raw)
	}
	return uint(val), nil
}

func repos() *repository.Repositories {
	return repository.GetGlobalRepositories()
}

// invalidatePublicViews drops cached storefront pages after a mutation.
func invalidatePublicViews(username string) {
	if publicResolver != nil && username != "" {
		publicResolver.Invalidate(username)
	}
}
