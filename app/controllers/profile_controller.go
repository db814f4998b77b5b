package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/entitlements"
	"github.com/vitrine-app/vitrine/internal/pkg/usercontext"
	"github.com/vitrine-app/vitrine/internal/pkg/whatsapp"
)

type updateProfileRequest struct {
	StoreName       *string `json:"store_name"`
	ContactNumber   *string `json:"contact_number"`
	MessageTemplate *string `json:"message_template"`
}

type claimUsernameRequest struct {
	Username string `json:"username"`
}

// HandleGetProfile returns the authenticated seller's profile with plan
// limits and current usage.
func HandleGetProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := repos().User.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}

	catalogCount, err := repos().Catalog.CountByOwner(user.ID)
	if err != nil {
		return respondError(c, err)
	}

	def := entitlements.Definition(entitlements.NormalizePlan(user.Plan))
	return c.JSON(fiber.Map{
		"id":               user.ID,
		"email":            user.Email,
		"username":         user.UsernameValue(),
		"store_name":       user.StoreName,
		"contact_number":   user.ContactNumber,
		"message_template": user.MessageTemplate,
		"store_photo_url":  user.StorePhotoURL,
		"plan":             user.Plan,
		"limits": fiber.Map{
			"catalogs":             def.CatalogsLimit,
			"products_per_catalog": def.ProductsPerCatalogLimit,
		},
		"usage": fiber.Map{
			"catalogs": catalogCount,
		},
	})
}

// HandleUpdateProfile updates store name, contact number and message
// template. Fields absent from the body stay untouched.
func HandleUpdateProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	fields := map[string]interface{}{}
	if req.StoreName != nil {
		name := strings.TrimSpace(*req.StoreName)
		if len(name) > 150 {
			return respondError(c, apperr.Validation("store name too long (max 150)"))
		}
		fields["store_name"] = name
	}
	if req.ContactNumber != nil {
		number := whatsapp.Sanitize(*req.ContactNumber)
		if number != "" && !whatsapp.ValidNumber(number) {
			return respondError(c, apperr.Validation("contact number must be 8-15 digits including country code"))
		}
		fields["contact_number"] = number
	}
	if req.MessageTemplate != nil {
		template := strings.TrimSpace(*req.MessageTemplate)
		if len(template) > 500 {
			return respondError(c, apperr.Validation("message template too long (max 500)"))
		}
		if template == "" {
			template = models.DefaultMessageTemplate
		}
		fields["message_template"] = template
	}
	if len(fields) == 0 {
		return respondError(c, apperr.Validation("no fields to update"))
	}

	if err := repos().User.UpdateFields(userCtx.UserID, fields); err != nil {
		return respondError(c, err)
	}

	invalidatePublicViews(userCtx.Username)

	user, err := repos().User.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleClaimUsername claims the seller's public handle. Claiming the handle
// you already hold is a no-op; anything else is first come, first served.
func HandleClaimUsername(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req claimUsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	username := models.NormalizeUsername(req.Username)
	if !models.ValidUsername(username) {
		return respondError(c, apperr.Validation("username must be 3-30 chars: lowercase letters, digits, '.', '_' or '-', starting alphanumeric"))
	}

	user, err := repos().User.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	if user.UsernameValue() == username {
		return c.JSON(fiber.Map{"username": username})
	}

	previous := user.UsernameValue()
	if err := repos().User.ClaimUsername(userCtx.UserID, username); err != nil {
		return respondError(c, err)
	}

	// Both the old and the new storefront URL change.
	invalidatePublicViews(previous)
	invalidatePublicViews(username)

	return c.JSON(fiber.Map{"username": username})
}
