package controllers

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
	"github.com/vitrine-app/vitrine/internal/pkg/blobstore"
	"github.com/vitrine-app/vitrine/internal/pkg/usercontext"
)

// MaxImageUploadBytes caps a single product image upload.
const MaxImageUploadBytes = 10 * 1024 * 1024

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
}

// HandleUploadImage accepts a multipart image upload and stores it in the
// object store. The returned URL is what product galleries reference.
func HandleUploadImage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	if blobStore == nil {
		return uploadsDisabled(c)
	}

	objectKey, url, err := storeUploadedImage(c, blobstore.NewProductImageKey, userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"url": url,
		"key": objectKey,
	})
}

// HandleUploadProfilePhoto replaces the seller's store photo. The previous
// photo is cleaned up from the object store in the background.
func HandleUploadProfilePhoto(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	if blobStore == nil {
		return uploadsDisabled(c)
	}

	user, err := repos().User.GetByID(userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}
	previous := user.StorePhotoURL

	_, url, err := storeUploadedImage(c, blobstore.NewProfilePhotoKey, userCtx.UserID)
	if err != nil {
		return respondError(c, err)
	}

	if err := repos().User.UpdateFields(userCtx.UserID, map[string]interface{}{"store_photo_url": url}); err != nil {
		return respondError(c, err)
	}

	if previous != "" && previous != url {
		enqueueImageCleanup(userCtx.UserID, []string{previous})
	}
	invalidatePublicViews(userCtx.Username)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"store_photo_url": url})
}

// storeUploadedImage validates the multipart "file" field and writes it to
// the object store under a key produced by keyFn.
func storeUploadedImage(c *fiber.Ctx, keyFn func(ownerID, ext string) string, ownerID string) (string, string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return "", "", apperr.Validation("missing file field")
	}
	if fileHeader.Size <= 0 {
		return "", "", apperr.Validation("empty upload")
	}
	if fileHeader.Size > MaxImageUploadBytes {
		return "", "", apperr.Validation("file too large (max %d bytes)", MaxImageUploadBytes)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedImageExtensions[ext] {
		return "", "", apperr.Validation("unsupported file type %q", ext)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	objectKey := keyFn(ownerID, ext)
	url, err := blobStore.Put(ctx, objectKey, file, fileHeader.Size, blobstore.ContentTypeForExt(ext))
	if err != nil {
		return "", "", err
	}
	return objectKey, url, nil
}

func uploadsDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error":   "uploads_disabled",
		"message": "image uploads are not configured",
	})
}
