package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/vitrine-app/vitrine/app/models"
	"github.com/vitrine-app/vitrine/internal/pkg/apperr"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a new profile. The id comes from the identity provider.
func (r *userRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return apperr.Validation("%s", err)
	}
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID retrieves a profile by its identity-provider id
func (r *userRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername resolves a normalized username to a profile
func (r *userRepository) GetByUsername(username string) (*models.User, error) {
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

// GetByBillingCustomerID resolves a billing customer to a profile. Used by
// the reconciler when a provider event carries no user linkage.
func (r *userRepository) GetByBillingCustomerID(customerID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("billing_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Update saves the full profile and refreshes the activity timestamp.
func (r *userRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return apperr.Validation("%s", err)
	}
	user.TouchLastActive()
	if err := r.db.Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrUsernameTaken
		}
		return err
	}
	return nil
}

// UpdateFields applies a partial update to a profile.
func (r *userRepository) UpdateFields(id string, fields map[string]interface{}) error {
	if _, ok := fields["last_active_at"]; !ok {
		fields["last_active_at"] = time.Now()
	}
	res := r.db.Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return apperr.ErrUsernameTaken
		}
		return res.Error
	}
	return nil
}

// ClaimUsername assigns a username to a profile. The unique index makes the
// database the arbiter: a lost race surfaces as ErrUsernameTaken, never as a
// check-then-act gap.
func (r *userRepository) ClaimUsername(id, username string) error {
	return r.UpdateFields(id, map[string]interface{}{
		"username": models.NormalizeUsername(username),
	})
}

// SyncOnLogin returns the profile for a verified identity, creating it on
// first login. Safe under concurrent first logins: the loser of the insert
// race re-reads the winner's row.
func (r *userRepository) SyncOnLogin(id, email string) (*models.User, error) {
	user, err := r.GetByID(id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	fresh := models.NewUser(id, email)
	if err := r.Create(fresh); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return r.GetByID(id)
		}
		return nil, err
	}
	return fresh, nil
}
