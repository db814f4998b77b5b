package repository

import (
	"github.com/vitrine-app/vitrine/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the privileged interface for profile operations.
// It is only handed to trusted, authenticated server-side handlers.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByBillingCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	UpdateFields(id string, fields map[string]interface{}) error
	ClaimUsername(id, username string) error
	SyncOnLogin(id, email string) (*models.User, error)
}

// CatalogRepository defines owner-scoped catalog operations. Every read is
// filtered by owner so authorization happens in the query itself.
type CatalogRepository interface {
	Create(catalog *models.Catalog) error
	GetByID(ownerID string, id uint) (*models.Catalog, error)
	ListByOwner(ownerID string) ([]models.Catalog, error)
	Update(catalog *models.Catalog) error
	Delete(ownerID string, id uint) error
	CountByOwner(ownerID string) (int64, error)
}

// ProductRepository defines catalog-scoped product operations. Callers must
// have already resolved the catalog through an owner-scoped read.
type ProductRepository interface {
	Create(product *models.Product) error
	GetByID(catalogID, id uint) (*models.Product, error)
	ListByCatalog(catalogID uint) ([]models.Product, error)
	Update(product *models.Product) error
	Delete(catalogID, id uint) error
	CountByCatalog(catalogID uint) (int64, error)
}

// PublicRepository is the restricted read-only interface used by anonymous
// public resolution. It can only see public catalogs and visible products,
// so a handler holding it cannot leak private data by construction.
type PublicRepository interface {
	GetUserByUsername(username string) (*models.User, error)
	GetPublicCatalogBySlug(ownerID, slug string) (*models.Catalog, error)
	ListPublicCatalogs(ownerID string) ([]models.Catalog, error)
	ListVisibleProducts(catalogID uint) ([]models.Product, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User    UserRepository
	Catalog CatalogRepository
	Product ProductRepository
	Public  PublicRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:    NewUserRepository(db),
		Catalog: NewCatalogRepository(db),
		Product: NewProductRepository(db),
		Public:  NewPublicRepository(db),
	}
}
