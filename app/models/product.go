package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxProductImages caps the image gallery per product.
const MaxProductImages = 3

// Product is an item inside a catalog. Visibility controls whether it shows
// up in the public storefront; the slug is unique per catalog.
type Product struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CatalogID   uint             `gorm:"not null;index;uniqueIndex:ux_products_catalog_slug,priority:1" json:"catalog_id"`
	Catalog     Catalog          `gorm:"foreignKey:CatalogID" json:"-" validate:"-"`
	Slug        string           `gorm:"type:varchar(80);not null;uniqueIndex:ux_products_catalog_slug,priority:2" json:"slug"`
	Name        string           `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description string           `gorm:"type:text" json:"description"`
	Price       *decimal.Decimal `gorm:"type:decimal(10,2)" json:"price,omitempty"`
	Images      []string         `gorm:"serializer:json;type:text" json:"images"`
	ImageURL    string           `gorm:"type:varchar(500)" json:"image_url"`
	Visible     bool             `gorm:"default:true" json:"visible"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// NormalizeImages drops empty entries, caps the gallery at MaxProductImages
// and keeps the single-image compatibility field pointing at the first entry.
func (p *Product) NormalizeImages() {
	cleaned := make([]string, 0, len(p.Images))
	for _, url := range p.Images {
		if url == "" {
			continue
		}
		cleaned = append(cleaned, url)
	}
	if len(cleaned) > MaxProductImages {
		cleaned = cleaned[:MaxProductImages]
	}
	p.Images = cleaned
	if len(cleaned) > 0 {
		p.ImageURL = cleaned[0]
	} else {
		p.ImageURL = ""
	}
}

// HasNonNegativePrice reports whether the price, when set, is valid.
func (p *Product) HasNonNegativePrice() bool {
	return p.Price == nil || !p.Price.IsNegative()
}
