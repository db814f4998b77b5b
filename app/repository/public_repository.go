package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
)

// publicRepository implements the restricted PublicRepository interface.
// Every query bakes the visibility filter into the WHERE clause; there is no
// way to reach a private catalog or hidden product through this type.
type publicRepository struct {
	db *gorm.DB
}

// NewPublicRepository creates a new read-only public repository instance
func NewPublicRepository(db *gorm.DB) PublicRepository {
	return &publicRepository{db: db}
}

// GetUserByUsername resolves a public username to its seller profile.
func (r *publicRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", models.NormalizeUsername(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetPublicCatalogBySlug resolves an owner+slug pair to a catalog, but only
// when the catalog is public. Private catalogs and absent slugs are the same
// ErrNotFound by design.
func (r *publicRepository) GetPublicCatalogBySlug(ownerID, slug string) (*models.Catalog, error) {
	var catalog models.Catalog
	err := r.db.Where("owner_id = ? AND slug = ? AND is_public = ?", ownerID, slug, true).
		First(&catalog).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &catalog, nil
}

// ListPublicCatalogs retrieves the public catalogs of a seller, newest first.
func (r *publicRepository) ListPublicCatalogs(ownerID string) ([]models.Catalog, error) {
	var catalogs []models.Catalog
	err := r.db.Where("owner_id = ? AND is_public = ?", ownerID, true).
		Order("created_at DESC").Find(&catalogs).Error
	return catalogs, err
}

// ListVisibleProducts retrieves the visible products of a catalog, newest
// first. Hidden products never leave the database through this path.
func (r *publicRepository) ListVisibleProducts(catalogID uint) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("catalog_id = ? AND visible = ?", catalogID, true).
		Order("created_at DESC").Find(&products).Error
	return products, err
}
