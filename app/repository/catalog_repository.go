package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
)

// catalogRepository implements the CatalogRepository interface
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new catalog repository instance
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// Create inserts a new catalog. A slug collision for the same owner surfaces
// as ErrDuplicateSlug via the composite unique index.
func (r *catalogRepository) Create(catalog *models.Catalog) error {
	if err := catalog.Validate(); err != nil {
		return apperr.Validation("%s", err)
	}
	if err := r.db.Create(catalog).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrDuplicateSlug
		}
		return err
	}
	return nil
}

// GetByID retrieves a catalog scoped by owner. A catalog belonging to someone
// else is indistinguishable from a missing one.
func (r *catalogRepository) GetByID(ownerID string, id uint) (*models.Catalog, error) {
	var catalog models.Catalog
	err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&catalog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &catalog, nil
}

// ListByOwner retrieves all catalogs belonging to a seller, newest first.
func (r *catalogRepository) ListByOwner(ownerID string) ([]models.Catalog, error) {
	var catalogs []models.Catalog
	err := r.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC").Find(&catalogs).Error
	return catalogs, err
}

// Update saves a catalog. Slug changes can collide like creates.
func (r *catalogRepository) Update(catalog *models.Catalog) error {
	if err := catalog.Validate(); err != nil {
		return apperr.Validation("%s", err)
	}
	if err := r.db.Save(catalog).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrDuplicateSlug
		}
		return err
	}
	return nil
}

// Delete removes a catalog and cascades to its products in one transaction.
func (r *catalogRepository) Delete(ownerID string, id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var catalog models.Catalog
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&catalog).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrNotFound
			}
			return err
		}
		if err := tx.Where("catalog_id = ?", id).Delete(&models.Product{}).Error; err != nil {
			return err
		}
		return tx.Delete(&catalog).Error
	})
}

// CountByOwner returns the number of catalogs for a seller.
func (r *catalogRepository) CountByOwner(ownerID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Catalog{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}
