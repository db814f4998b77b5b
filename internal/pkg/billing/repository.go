package billing

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
)

// Repository is the persistence boundary of the reconciler.
type Repository interface {
	GetUser(id string) (*models.User, error)
	GetUserByBillingCustomerID(customerID string) (*models.User, error)
	UpdateUserBilling(userID string, fields map[string]interface{}) error

	// CreateWebhookEventIfNotExists inserts the event row and reports whether
	// the insert happened. A false return means the provider event id was
	// already stored and the delivery is a replay.
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, error)
	GetWebhookEvent(providerEventID string) (*models.BillingWebhookEvent, error)
	MarkWebhookProcessed(providerEventID string, processingErr error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates the GORM-backed billing repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUser(id string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) GetUserByBillingCustomerID(customerID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("billing_customer_id = ?", customerID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) UpdateUserBilling(userID string, fields map[string]interface{}) error {
	result := r.db.Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing user from a no-change update.
		var count int64
		if err := r.db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.ErrNotFound
		}
	}
	return nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) GetWebhookEvent(providerEventID string) (*models.BillingWebhookEvent, error) {
	var event models.BillingWebhookEvent
	err := r.db.Where("provider_event_id = ?", providerEventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *gormRepository) MarkWebhookProcessed(providerEventID string, processingErr error) error {
	now := time.Now()
	fields := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}
	if processingErr != nil {
		fields["processed_at"] = gorm.Expr("NULL")
		fields["processing_error"] = processingErr.Error()
	}
	return r.db.Model(&models.BillingWebhookEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Updates(fields).Error
}
