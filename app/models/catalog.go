package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Catalog is an owned, sluggable collection of products. The slug is unique
// per owner, not globally, so two sellers can both publish "/summer".
type Catalog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     string    `gorm:"type:varchar(64);not null;index;uniqueIndex:ux_catalogs_owner_slug,priority:1" json:"owner_id"`
	Owner       User      `gorm:"foreignKey:OwnerID" json:"-" validate:"-"`
	Slug        string    `gorm:"type:varchar(80);not null;uniqueIndex:ux_catalogs_owner_slug,priority:2" json:"slug"`
	Name        string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description string    `gorm:"type:text" json:"description"`
	IsPublic    bool      `gorm:"default:false" json:"is_public"`
	ViewCount   int       `gorm:"default:0" json:"view_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Catalog) Validate() error {
	v := validator.New()

	return v.Struct(c)
}
