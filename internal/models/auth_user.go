package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthUser is the gateway-owned identity record behind a session.
type AuthUser struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	ConfirmationToken *string    `gorm:"uniqueIndex" json:"-"`
	// TokenVersion is stamped into every access token; bumping it revokes them all.
	TokenVersion int       `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Profile shares the identity's primary key and goes away with it.
	Profile *Profile `gorm:"foreignKey:ID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (AuthUser) TableName() string { return "auth_users" }

func (u *AuthUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Confirmed reports whether the email address has been verified.
func (u *AuthUser) Confirmed() bool { return u.ConfirmedAt != nil }
