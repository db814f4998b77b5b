package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product. The gallery is normalized before the write so
// the row never holds more than the allowed number of images.
func (r *productRepository) Create(product *models.Product) error {
	product.NormalizeImages()
	if err := product.Validate(); err != nil {
		return apperr.Validation("%s", err)
	}
	if err := r.db.Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrDuplicateSlug
		}
		return err
	}
	return nil
}

// GetByID retrieves a product scoped by catalog.
func (r *productRepository) GetByID(catalogID, id uint) (*models.Product, error) {
	var product models.Product
	err := r.db.Where("id = ? AND catalog_id = ?", id, catalogID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ListByCatalog retrieves all products of a catalog, newest first.
func (r *productRepository) ListByCatalog(catalogID uint) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("catalog_id = ?", catalogID).
		Order("created_at DESC").Find(&products).Error
	return products, err
}

// Update saves a product after re-normalizing its gallery.
func (r *productRepository) Update(product *models.Product) error {
	product.NormalizeImages()
	if err := product.Validate(); err != nil {
		return apperr.Validation("%s", err)
	}
	if err := r.db.Save(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrDuplicateSlug
		}
		return err
	}
	return nil
}

// Delete removes a product scoped by catalog.
func (r *productRepository) Delete(catalogID, id uint) error {
	res := r.db.Where("id = ? AND catalog_id = ?", id, catalogID).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CountByCatalog returns the number of products in a catalog.
func (r *productRepository) CountByCatalog(catalogID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Product{}).Where("catalog_id = ?", catalogID).Count(&count).Error
	return count, err
}
