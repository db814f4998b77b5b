package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultMessageTemplate is applied to new profiles until the seller
// customizes it. The {{productName}} placeholder is replaced when building
// the WhatsApp contact link.
const DefaultMessageTemplate = "Hi! I'm interested in {{productName}}"

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,29}$`)

// User is a seller profile. The primary key is the stable identifier issued
// by the external identity provider and never changes.
type User struct {
	ID                    string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email                 string     `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email,max=200"`
	Username              *string    `gorm:"type:varchar(30);uniqueIndex" json:"username,omitempty"`
	StoreName             string     `gorm:"type:varchar(150)" json:"store_name" validate:"max=150"`
	ContactNumber         string     `gorm:"type:varchar(20)" json:"contact_number"`
	MessageTemplate       string     `gorm:"type:varchar(500)" json:"message_template" validate:"max=500"`
	StorePhotoURL         string     `gorm:"type:varchar(500)" json:"store_photo_url"`
	Plan                  string     `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`
	BillingCustomerID     *string    `gorm:"type:varchar(191);index" json:"-"`
	BillingSubscriptionID *string    `gorm:"type:varchar(191);index" json:"-"`
	LastActiveAt          *time.Time `gorm:"type:timestamp;default:null" json:"last_active_at,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewUser builds a fresh profile for a first-time login. The plan starts at
// free and the message template at the default placeholder text.
func NewUser(id, email string) *User {
	return &User{
		ID:              strings.TrimSpace(id),
		Email:           strings.TrimSpace(email),
		MessageTemplate: DefaultMessageTemplate,
		Plan:            "free",
	}
}

// NormalizeUsername lowercases and trims a username candidate. Uniqueness is
// case-insensitive, so usernames are always stored in this normalized form.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidUsername reports whether the (normalized) username may be claimed.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// HasUsername reports whether the profile already claimed a public handle.
func (u *User) HasUsername() bool {
	return u.Username != nil && *u.Username != ""
}

// UsernameValue returns the claimed username or an empty string.
func (u *User) UsernameValue() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// TouchLastActive refreshes the activity timestamp.
func (u *User) TouchLastActive() {
	now := time.Now()
	u.LastActiveAt = &now
}
